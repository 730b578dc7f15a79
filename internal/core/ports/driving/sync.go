package driving

import (
	"context"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// SyncCoordinator keeps the vector index consistent with the record store.
type SyncCoordinator interface {
	// Enqueue schedules a sync for the mutation without waiting.
	Enqueue(m domain.Mutation)

	// SyncRecord schedules a sync and waits for its result.
	// A mutation coalesced into a follow-up sync receives the follow-up's result.
	// ctx bounds the wait, not the sync itself.
	SyncRecord(ctx context.Context, m domain.Mutation) error

	// Reindex forces a resync of every record of the given kinds.
	// No kinds means every registered kind.
	Reindex(ctx context.Context, kinds ...domain.ContentKind) (domain.ReindexReport, error)

	// Status returns the sync state of one identity.
	Status(ref domain.SourceRef) domain.SyncStatus
}
