package driven

import (
	"context"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// RecordSource reads content records from the relational store.
type RecordSource interface {
	// Get returns the current state of one record.
	// Returns domain.ErrNotFound if the record no longer exists.
	Get(ctx context.Context, ref domain.SourceRef) (*domain.SourceRecord, error)

	// ListIDs returns the IDs of every record of the kind.
	ListIDs(ctx context.Context, kind domain.ContentKind) ([]string, error)
}
