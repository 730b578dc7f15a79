package services

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
)

// Ensure MutationBus implements the interface.
var _ driving.MutationPublisher = (*MutationBus)(nil)

// MutationHandler consumes one mutation.
type MutationHandler func(ctx context.Context, m domain.Mutation)

type subscriber struct {
	name    string
	handler MutationHandler
}

// MutationBus fans record mutations out to independent subscribers.
// Each subscriber runs in its own goroutine; a panic in one is recovered
// and never reaches the publisher or the other subscribers.
type MutationBus struct {
	registry *domain.KindRegistry
	now      func() time.Time

	mu          sync.RWMutex
	subscribers []subscriber
	wg          sync.WaitGroup
}

// NewMutationBus creates a bus that only forwards registered kinds.
func NewMutationBus(registry *domain.KindRegistry) *MutationBus {
	return &MutationBus{
		registry: registry,
		now:      time.Now,
	}
}

// Subscribe registers a handler under a name used in logs.
func (b *MutationBus) Subscribe(name string, handler MutationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, handler: handler})
}

// Publish validates m, stamps its ID and receive time when missing, and
// hands it to every subscriber. Mutations of unregistered kinds are dropped.
// Handlers run detached from ctx's cancellation.
func (b *MutationBus) Publish(ctx context.Context, m domain.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !b.registry.Has(m.Ref.Kind) {
		logger.Debug("bus: dropping mutation for unregistered kind %q", m.Ref.Kind)
		return nil
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = b.now()
	}

	b.mu.RLock()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, s := range subs {
		b.wg.Add(1)
		go b.deliver(detached, s, m)
	}
	logger.Debug("bus: published %s %s (%s) to %d subscribers", m.Op, m.Ref, m.ID, len(subs))
	return nil
}

// Wait blocks until every delivered mutation has been handled.
func (b *MutationBus) Wait() {
	b.wg.Wait()
}

func (b *MutationBus) deliver(ctx context.Context, s subscriber, m domain.Mutation) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bus: subscriber %s panicked on %s: %v\n%s", s.name, m.Ref, r, debug.Stack())
		}
	}()
	s.handler(ctx, m)
}

// SyncSubscriber adapts a coordinator to the bus.
func SyncSubscriber(c driving.SyncCoordinator) MutationHandler {
	return func(_ context.Context, m domain.Mutation) {
		c.Enqueue(m)
	}
}

// CacheSubscriber adapts cache coherence to the bus.
func CacheSubscriber(c driving.CacheCoherence) MutationHandler {
	return func(ctx context.Context, m domain.Mutation) {
		if report := c.OnMutation(ctx, m.Ref.Kind); !report.OK() {
			logger.Warn("bus: cache invalidation for %s incomplete: %d failures", m.Ref, len(report.Failed))
		}
	}
}
