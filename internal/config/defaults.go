package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultSystemPrompt frames the assistant for site visitors.
const DefaultSystemPrompt = "You are the assistant on a school website. Answer questions from parents, " +
	"pupils and visitors using only the provided context. If the context does not contain the answer, " +
	"say so and suggest contacting the school office."

// defaults lists every key. Keys absent here are not overridable by environment.
var defaults = map[string]any{
	"server.address":               ":8080",
	"server.chat_timeout":          30 * time.Second,
	"server.rate_limit_per_minute": 20,
	"server.shutdown_timeout":      15 * time.Second,

	"embedding.base_url":      "https://api.openai.com/v1",
	"embedding.api_key":       "",
	"embedding.model":         "text-embedding-3-small",
	"embedding.dimensions":    1536,
	"embedding.timeout":       15 * time.Second,
	"embedding.max_retries":   2,
	"embedding.retry_backoff": 250 * time.Millisecond,
	"embedding.batch_size":    64,

	"generation.base_url":          "https://api.openai.com/v1",
	"generation.api_key":           "",
	"generation.model":             "gpt-4o-mini",
	"generation.timeout":           30 * time.Second,
	"generation.max_retries":       2,
	"generation.retry_backoff":     500 * time.Millisecond,
	"generation.max_history_turns": 6,
	"generation.max_tokens":        600,
	"generation.temperature":       0.2,
	"generation.system_prompt":     DefaultSystemPrompt,

	"chunking.size":    500,
	"chunking.overlap": 100,

	"retrieval.top_k":              5,
	"retrieval.threshold":          0.5,
	"retrieval.max_context_length": 4000,

	"sync.workers":          4,
	"sync.timeout":          2 * time.Minute,
	"sync.reindex_schedule": "",

	"index.driver": "memory",
	"index.dsn":    "",
	"index.path":   "campus-index.db",

	"records.driver":         "memory",
	"records.dsn":            "",
	"records.notify_channel": "content_mutations",
	"records.seed_file":      "",

	"cache.driver":         "memory",
	"cache.redis_addr":     "localhost:6379",
	"cache.redis_password": "",
	"cache.redis_db":       0,
	"cache.key_prefix":     "campus:",
	"cache.timeout":        2 * time.Second,

	"kinds_file":  "",
	"log.verbose": false,
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
