package driven

import (
	"context"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// VectorIndex stores chunk embeddings keyed by (kind, source id, chunk index).
type VectorIndex interface {
	// UpsertSource atomically replaces every entry of the source identity.
	// On failure the previous entries remain untouched.
	UpsertSource(ctx context.Context, ref domain.SourceRef, entries []domain.IndexEntry) error

	// DeleteSource removes every entry of the source identity.
	// Deleting an identity with no entries is not an error.
	DeleteSource(ctx context.Context, ref domain.SourceRef) error

	// ScoreAll returns the cosine similarity of query against every stored entry.
	ScoreAll(ctx context.Context, query []float32) ([]domain.ScoredEntry, error)

	// Entries returns the stored entries of one identity, ordered by chunk index.
	Entries(ctx context.Context, ref domain.SourceRef) ([]domain.IndexEntry, error)

	// Sources lists the identities with at least one entry for the kind.
	Sources(ctx context.Context, kind domain.ContentKind) ([]domain.SourceRef, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// RankedSearcher is implemented by indexes that can narrow the candidates
// for a query inside their engine. Search must return, with embeddings,
// every entry that can be among the limit best at or above minScore under
// exact cosine similarity. Extra candidates are allowed and engine scores
// may be approximate; the ranker re-scores and orders what it gets.
type RankedSearcher interface {
	Search(ctx context.Context, query []float32, limit int, minScore float64) ([]domain.ScoredEntry, error)
}
