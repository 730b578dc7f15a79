package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure CacheStore implements the interface.
var _ driven.CacheStore = (*CacheStore)(nil)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
	tags      []string
}

// CacheStore is an in-memory implementation of driven.CacheStore.
type CacheStore struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

// NewCacheStore creates an empty cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{
		entries: make(map[string]cacheEntry),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Get returns a live entry's value.
func (c *CacheStore) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.deleteLocked(key)
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value, replacing any previous entry and its tags.
func (c *CacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)

	e := cacheEntry{value: append([]byte(nil), value...), tags: tags}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	for _, tag := range tags {
		if c.tags[tag] == nil {
			c.tags[tag] = make(map[string]struct{})
		}
		c.tags[tag][key] = struct{}{}
	}
	return nil
}

// Delete removes named entries.
func (c *CacheStore) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.deleteLocked(key)
	}
	return nil
}

// InvalidateTag removes every entry carrying tag.
func (c *CacheStore) InvalidateTag(_ context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.tags[tag] {
		c.deleteLocked(key)
	}
	delete(c.tags, tag)
	return nil
}

// Close is a no-op.
func (c *CacheStore) Close() error {
	return nil
}

func (c *CacheStore) deleteLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	for _, tag := range e.tags {
		delete(c.tags[tag], key)
		if len(c.tags[tag]) == 0 {
			delete(c.tags, tag)
		}
	}
}
