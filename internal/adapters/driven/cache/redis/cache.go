// Package redis provides a Redis-backed derived-data cache for multi-node
// deployments.
//
// Each tag is a Redis set holding the keys stored under it. A key re-stored
// without a tag stays in the old tag set until that tag is invalidated, so a
// stale membership can only cause an extra deletion, never a missed one.
// Tag invalidation runs as a single Lua script.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.CacheStore = (*Cache)(nil)

// Config holds the connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every key, for example "campus:".
	KeyPrefix string

	// Timeout bounds dialing and each command.
	Timeout time.Duration
}

// Cache implements driven.CacheStore on Redis.
type Cache struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", domain.ErrInvalidInput)
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return &Cache{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get returns a cached value. Returns domain.ErrNotFound on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrCacheUnavailable, key, err)
	}
	return val, nil
}

// Set stores the value and registers it under each tag atomically.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	full := c.key(key)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, full, value, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, c.tagKey(tag), full)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %w", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Delete removes named entries.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: delete: %w", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// invalidateTag deletes the members of the tag set in KEYS[1] and the set
// itself in one step, so a Set running alongside is either deleted or
// keeps its membership.
var invalidateTag = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
for i = 1, #members, 500 do
	redis.call('DEL', unpack(members, i, math.min(i + 499, #members)))
end
redis.call('DEL', KEYS[1])
return #members
`)

// InvalidateTag removes every entry registered under tag, then the tag set.
func (c *Cache) InvalidateTag(ctx context.Context, tag string) error {
	if err := invalidateTag.Run(ctx, c.client, []string{c.tagKey(tag)}).Err(); err != nil {
		return fmt.Errorf("%w: invalidating tag %s: %w", domain.ErrCacheUnavailable, tag, err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

func (c *Cache) tagKey(tag string) string {
	return c.prefix + "tag:" + tag
}
