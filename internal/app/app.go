// Package app assembles the campus services from configuration and runs
// the long-lived parts of the process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/custodia-labs/campus/internal/adapters/driven/ai"
	"github.com/custodia-labs/campus/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/campus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/campus/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/campus/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/core/services"
	"github.com/custodia-labs/campus/internal/kinds"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
	"github.com/custodia-labs/campus/internal/normalisers/html"
	"github.com/custodia-labs/campus/internal/normalisers/markdown"
	"github.com/custodia-labs/campus/internal/normalisers/record"
	"github.com/custodia-labs/campus/internal/postprocessors/chunker"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Registry *domain.KindRegistry
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Index     driven.VectorIndex
	Records   driven.RecordSource
	Cache     driven.CacheStore
	Embedder  *services.EmbeddingClient
	Tuning    *services.Tuning
	Sync      *services.SyncCoordinator
	Retrieval *services.Ranker
	Assembler *services.ContextAssembler
	Chat      *services.ChatService
	Coherence *services.CacheCoherence
	Bus       *services.MutationBus
	Scheduler *services.ReindexScheduler

	closers   []namedCloser
	closeOnce sync.Once
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Option overrides a part of the wiring.
type Option func(*options)

type options struct {
	embedding  driven.EmbeddingService
	generation driven.GenerationService
	generator  bool
	records    driven.RecordSource
}

// WithEmbeddingService uses svc instead of the configured OpenAI endpoint.
func WithEmbeddingService(svc driven.EmbeddingService) Option {
	return func(o *options) {
		o.embedding = svc
	}
}

// WithGenerationService uses svc instead of the configured OpenAI endpoint.
// A nil svc disables generation.
func WithGenerationService(svc driven.GenerationService) Option {
	return func(o *options) {
		o.generation = svc
		o.generator = true
	}
}

// WithRecordSource uses src instead of the configured record driver.
func WithRecordSource(src driven.RecordSource) Option {
	return func(o *options) {
		o.records = src
	}
}

// New builds every service described by cfg. On error, whatever was
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close() //nolint:errcheck
		}
	}()

	// 1. Content kinds
	a.Registry, err = kinds.Load(cfg.KindsFile)
	if err != nil {
		return nil, err
	}

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics, err = metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	a.Gatherer = reg

	// 3. Storage
	if a.Index, err = openIndex(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{"index", a.Index})

	if o.records != nil {
		a.Records = o.records
	} else if a.Records, err = a.openRecords(ctx); err != nil {
		return nil, err
	}

	if a.Cache, err = openCache(ctx, cfg); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{"cache", a.Cache})

	// 4. Model services
	embedding := o.embedding
	if embedding == nil {
		if embedding, err = ai.CreateEmbeddingService(cfg.Embedding); err != nil {
			return nil, err
		}
	}
	a.Embedder = services.NewEmbeddingClient(embedding, cfg.Embedding.Dimensions,
		services.WithEmbeddingTimeout(cfg.Embedding.Timeout),
		services.WithEmbeddingRetries(cfg.Embedding.MaxRetries, cfg.Embedding.RetryBackoff),
		services.WithEmbeddingBatchSize(cfg.Embedding.BatchSize),
		services.WithEmbeddingMetrics(a.Metrics),
	)
	a.closers = append(a.closers, namedCloser{"embedding", a.Embedder})

	generation := o.generation
	if !o.generator {
		if generation, err = ai.CreateGenerationService(cfg.Generation); err != nil {
			return nil, err
		}
	}
	if generation != nil {
		a.closers = append(a.closers, namedCloser{"generation", generation})
	} else {
		logger.Warn("no generation model configured; chat will answer with the fallback message")
	}

	// 5. Core services
	chunks, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return nil, err
	}

	if a.Tuning, err = services.NewTuning(cfg.Retrieval.Settings()); err != nil {
		return nil, err
	}

	a.Sync = services.NewSyncCoordinator(
		a.Records,
		record.New(a.Registry, html.New(), record.WithMarkdown(markdown.New())),
		chunks,
		a.Embedder,
		a.Index,
		a.Registry,
		services.WithSyncWorkers(cfg.Sync.Workers),
		services.WithSyncTimeout(cfg.Sync.Timeout),
		services.WithSyncMetrics(a.Metrics),
	)
	a.Retrieval = services.NewRanker(a.Embedder, a.Index, a.Metrics)
	a.Assembler = services.NewContextAssembler(a.Registry)
	a.Chat = services.NewChatService(a.Retrieval, a.Assembler, generation, a.Tuning,
		services.WithSystemPrompt(cfg.Generation.SystemPrompt),
		services.WithHistoryTurns(cfg.Generation.MaxHistoryTurns),
		services.WithGenerationRetries(cfg.Generation.MaxRetries, cfg.Generation.RetryBackoff),
		services.WithGenerationTimeout(cfg.Generation.Timeout),
		services.WithChatMetrics(a.Metrics),
	)
	a.Coherence = services.NewCacheCoherence(a.Cache, a.Registry, a.Metrics, cfg.Cache.Timeout)

	// 6. Mutation fan-out; the two subscribers never share a failure
	a.Bus = services.NewMutationBus(a.Registry)
	a.Bus.Subscribe("sync", services.SyncSubscriber(a.Sync))
	a.Bus.Subscribe("cache", services.CacheSubscriber(a.Coherence))

	if cfg.Sync.ReindexSchedule != "" {
		a.Scheduler, err = services.NewReindexScheduler(cfg.Sync.ReindexSchedule, a.Sync, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}

	return a, nil
}

// Close stops background work and releases every resource, in reverse
// order of opening. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.Scheduler != nil {
			_ = a.Scheduler.Stop()
		}
		if a.Bus != nil {
			a.Bus.Wait()
		}
		if a.Sync != nil {
			if err := a.Sync.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing sync: %w", err))
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i].c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s: %w", a.closers[i].name, err))
			}
		}
	})
	return errors.Join(errs...)
}

// ApplyConfig pushes the hot-reloadable part of cfg into the running
// services. Only retrieval tuning changes without a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	if err := a.Tuning.Set(cfg.Retrieval.Settings()); err != nil {
		logger.Warn("config reload: keeping retrieval settings: %v", err)
		return
	}
	logger.Info("retrieval settings updated: top_k=%d threshold=%.2f max_context_length=%d",
		cfg.Retrieval.TopK, cfg.Retrieval.Threshold, cfg.Retrieval.MaxContextLength)
}

func openIndex(ctx context.Context, cfg *config.Config) (driven.VectorIndex, error) {
	dims := cfg.Embedding.Dimensions
	switch cfg.Index.Driver {
	case "sqlite":
		logger.Debug("index: sqlite at %s", cfg.Index.Path)
		return sqlite.NewStore(cfg.Index.Path, dims)
	case "postgres":
		if err := postgres.Migrate(cfg.Index.DSN, postgres.DirectionUp, 0); err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, cfg.Index.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
		logger.Debug("index: postgres")
		return postgres.NewIndex(db, dims), nil
	default:
		logger.Debug("index: memory")
		return memory.NewVectorIndex(dims), nil
	}
}

func (a *App) openRecords(ctx context.Context) (driven.RecordSource, error) {
	cfg := a.Config
	if cfg.Records.Driver == "postgres" {
		db, err := postgres.Open(ctx, cfg.Records.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening record source: %w", err)
		}
		src := postgres.NewRecordSource(db, a.Registry)
		a.closers = append(a.closers, namedCloser{"records", src})
		return src, nil
	}

	src := memory.NewRecordSource()
	if cfg.Records.SeedFile == "" {
		return src, nil
	}
	f, err := os.Open(cfg.Records.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	n, err := src.LoadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", cfg.Records.SeedFile, err)
	}
	logger.Info("records: loaded %d records from %s", n, cfg.Records.SeedFile)
	return src, nil
}

func openCache(ctx context.Context, cfg *config.Config) (driven.CacheStore, error) {
	if cfg.Cache.Driver == "redis" {
		return redis.New(ctx, redis.Config{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
			Timeout:   cfg.Cache.Timeout,
		})
	}
	return memory.NewCacheStore(), nil
}
