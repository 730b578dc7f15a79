// Package config loads campus configuration from a TOML file and the
// environment. Every key has a default and can be overridden by an
// environment variable named CAMPUS_<SECTION>_<KEY>, for example
// CAMPUS_RETRIEVAL_TOP_K or CAMPUS_CHUNKING_SIZE.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CAMPUS"

// Config holds all configuration for the service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Index      IndexConfig      `mapstructure:"index"`
	Records    RecordsConfig    `mapstructure:"records"`
	Cache      CacheConfig      `mapstructure:"cache"`
	KindsFile  string           `mapstructure:"kinds_file"`
	Log        LogConfig        `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address            string        `mapstructure:"address"`
	ChatTimeout        time.Duration `mapstructure:"chat_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding service.
type EmbeddingConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// GenerationConfig configures the OpenAI-compatible chat completion service.
type GenerationConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	MaxHistoryTurns int           `mapstructure:"max_history_turns"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
	SystemPrompt    string        `mapstructure:"system_prompt"`
}

// Enabled reports whether a generation model is configured.
func (c GenerationConfig) Enabled() bool {
	return strings.TrimSpace(c.Model) != ""
}

// ChunkingConfig sets the chunk window.
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// RetrievalConfig tunes the query path.
type RetrievalConfig struct {
	TopK             int     `mapstructure:"top_k"`
	Threshold        float64 `mapstructure:"threshold"`
	MaxContextLength int     `mapstructure:"max_context_length"`
}

// Settings converts to the domain type.
func (c RetrievalConfig) Settings() domain.RetrievalSettings {
	return domain.RetrievalSettings{
		TopK:             c.TopK,
		Threshold:        c.Threshold,
		MaxContextLength: c.MaxContextLength,
	}
}

// SyncConfig controls the sync coordinator.
type SyncConfig struct {
	Workers         int           `mapstructure:"workers"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ReindexSchedule string        `mapstructure:"reindex_schedule"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Path   string `mapstructure:"path"`
}

// RecordsConfig selects the record source.
type RecordsConfig struct {
	// Driver is one of memory, postgres.
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	NotifyChannel string `mapstructure:"notify_channel"`

	// SeedFile is a JSON fixtures file loaded into the memory record source.
	SeedFile string `mapstructure:"seed_file"`
}

// CacheConfig selects the derived cache store.
type CacheConfig struct {
	// Driver is one of memory, redis.
	Driver        string        `mapstructure:"driver"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LogConfig controls logging.
type LogConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// Load reads configuration. With an empty path it looks for campus.toml in
// the working directory and /etc/campus, and runs on defaults if none exists.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("campus")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/campus")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional OpenAI variable as a fallback for both services
	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("generation.api_key", EnvPrefix+"_GENERATION_API_KEY", "OPENAI_API_KEY")
	return v
}

// Normalize trims string settings and lowercases driver names.
func (c *Config) Normalize() {
	c.Index.Driver = strings.ToLower(strings.TrimSpace(c.Index.Driver))
	c.Records.Driver = strings.ToLower(strings.TrimSpace(c.Records.Driver))
	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	c.Sync.ReindexSchedule = strings.TrimSpace(c.Sync.ReindexSchedule)
	c.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Embedding.BaseURL), "/")
	c.Generation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Generation.BaseURL), "/")
	if c.KindsFile != "" {
		c.KindsFile = os.ExpandEnv(c.KindsFile)
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	if c.Chunking.Overlap < 0 || c.Chunking.Size <= c.Chunking.Overlap {
		errs = append(errs, fmt.Errorf("%w: chunking.size (%d) must exceed chunking.overlap (%d) >= 0",
			domain.ErrInvalidChunkConfig, c.Chunking.Size, c.Chunking.Overlap))
	}
	if err := c.Retrieval.Settings().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retrieval: %w", err))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.dimensions must be positive", domain.ErrInvalidInput))
	}
	if c.Embedding.MaxRetries < 0 || c.Generation.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: max_retries cannot be negative", domain.ErrInvalidInput))
	}
	if c.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.batch_size must be positive", domain.ErrInvalidInput))
	}
	if c.Generation.MaxHistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("%w: generation.max_history_turns cannot be negative", domain.ErrInvalidInput))
	}
	if c.Server.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("%w: server.rate_limit_per_minute must be positive", domain.ErrInvalidInput))
	}
	if c.Sync.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: sync.workers must be positive", domain.ErrInvalidInput))
	}

	errs = append(errs,
		oneOf("index.driver", c.Index.Driver, "memory", "sqlite", "postgres"),
		oneOf("records.driver", c.Records.Driver, "memory", "postgres"),
		oneOf("cache.driver", c.Cache.Driver, "memory", "redis"),
	)
	if c.Index.Driver == "postgres" && c.Index.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: index.dsn is required for the postgres index", domain.ErrInvalidInput))
	}
	if c.Records.Driver == "postgres" && c.Records.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: records.dsn is required for the postgres record source", domain.ErrInvalidInput))
	}

	return errors.Join(errs...)
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", domain.ErrInvalidInput, key, strings.Join(allowed, ", "), value)
}
