package driving

import (
	"context"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// CacheCoherence invalidates derived caches when records change.
type CacheCoherence interface {
	// OnMutation invalidates the cache keys and tags registered for the kind.
	OnMutation(ctx context.Context, kind domain.ContentKind) domain.InvalidationReport
}

// MutationPublisher accepts record lifecycle notifications.
type MutationPublisher interface {
	// Publish fans the mutation out to every subscriber.
	// Returns domain.ErrInvalidInput for malformed mutations.
	Publish(ctx context.Context, m domain.Mutation) error
}
