package driven

import (
	"context"
	"time"
)

// CacheStore holds derived data built from content records,
// such as rendered homepage fragments and listing pages.
type CacheStore interface {
	// Get returns a cached value. Returns domain.ErrNotFound on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL and optional tag groups.
	// A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error

	// Delete removes named entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// InvalidateTag removes every entry registered under the tag.
	InvalidateTag(ctx context.Context, tag string) error

	// Close releases resources.
	Close() error
}
