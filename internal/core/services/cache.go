package services

import (
	"context"
	"time"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
)

// Ensure CacheCoherence implements the interface.
var _ driving.CacheCoherence = (*CacheCoherence)(nil)

// DefaultCacheTimeout bounds one invalidation run.
const DefaultCacheTimeout = 5 * time.Second

// CacheCoherence drops the derived caches registered for a mutated kind.
// It runs independently of indexing and never fails the mutation.
type CacheCoherence struct {
	store    driven.CacheStore
	registry *domain.KindRegistry
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// NewCacheCoherence creates a coordinator. m may be nil; a non-positive
// timeout uses DefaultCacheTimeout.
func NewCacheCoherence(store driven.CacheStore, registry *domain.KindRegistry, m *metrics.Metrics, timeout time.Duration) *CacheCoherence {
	if timeout <= 0 {
		timeout = DefaultCacheTimeout
	}
	return &CacheCoherence{
		store:    store,
		registry: registry,
		metrics:  m,
		timeout:  timeout,
	}
}

// OnMutation deletes the kind's cache keys, then its tag groups. Each
// failure is recorded in the report and the remaining invalidations still run.
func (c *CacheCoherence) OnMutation(ctx context.Context, kind domain.ContentKind) domain.InvalidationReport {
	report := domain.InvalidationReport{Kind: kind}
	spec, ok := c.registry.Lookup(kind)
	if !ok {
		logger.Debug("cache: no caches registered for %q", kind)
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for _, key := range spec.CacheKeys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.fail(&report, key, err)
			continue
		}
		c.metrics.CacheInvalidation(string(kind), true)
		report.Keys = append(report.Keys, key)
	}
	for _, tag := range spec.CacheTags {
		if err := c.store.InvalidateTag(ctx, tag); err != nil {
			c.fail(&report, "tag:"+tag, err)
			continue
		}
		c.metrics.CacheInvalidation(string(kind), true)
		report.Tags = append(report.Tags, tag)
	}

	if report.OK() {
		logger.Debug("cache: invalidated %d keys and %d tags for %s", len(report.Keys), len(report.Tags), kind)
	}
	return report
}

func (c *CacheCoherence) fail(report *domain.InvalidationReport, target string, err error) {
	if report.Failed == nil {
		report.Failed = make(map[string]string)
	}
	report.Failed[target] = err.Error()
	c.metrics.CacheInvalidation(string(report.Kind), false)
	logger.Warn("cache: failed to invalidate %s for %s: %v", target, report.Kind, err)
}
