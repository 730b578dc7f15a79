package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/vectormath"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Scoring is brute-force cosine similarity. A source's entries are swapped
// under the write lock, so readers see either the old set or the new one.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	sources    map[domain.SourceRef][]domain.IndexEntry
}

// NewVectorIndex creates an empty index. dimensions of 0 accepts any size.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		sources:    make(map[domain.SourceRef][]domain.IndexEntry),
	}
}

// UpsertSource replaces every entry of ref.
func (x *VectorIndex) UpsertSource(_ context.Context, ref domain.SourceRef, entries []domain.IndexEntry) error {
	if err := domain.ValidateEntries(ref, entries, x.dimensions); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailed, err)
	}

	replacement := make([]domain.IndexEntry, len(entries))
	for i, e := range entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		replacement[i] = e
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if len(replacement) == 0 {
		delete(x.sources, ref)
		return nil
	}
	x.sources[ref] = replacement
	return nil
}

// DeleteSource removes every entry of ref.
func (x *VectorIndex) DeleteSource(_ context.Context, ref domain.SourceRef) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.sources, ref)
	return nil
}

// ScoreAll scores every stored entry against query.
func (x *VectorIndex) ScoreAll(ctx context.Context, query []float32) ([]domain.ScoredEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	scored := make([]domain.ScoredEntry, 0, x.countLocked())
	for _, ref := range x.sortedRefsLocked("") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range x.sources[ref] {
			scored = append(scored, domain.ScoredEntry{
				Entry: e,
				Score: vectormath.Cosine(query, e.Embedding),
			})
		}
	}
	return scored, nil
}

// Entries returns the entries of ref in chunk order.
func (x *VectorIndex) Entries(_ context.Context, ref domain.SourceRef) ([]domain.IndexEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]domain.IndexEntry(nil), x.sources[ref]...), nil
}

// Sources lists the indexed identities of kind.
func (x *VectorIndex) Sources(_ context.Context, kind domain.ContentKind) ([]domain.SourceRef, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sortedRefsLocked(kind), nil
}

// Count returns the number of stored entries.
func (x *VectorIndex) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.countLocked(), nil
}

// Close is a no-op.
func (x *VectorIndex) Close() error {
	return nil
}

func (x *VectorIndex) countLocked() int {
	n := 0
	for _, entries := range x.sources {
		n += len(entries)
	}
	return n
}

// sortedRefsLocked lists identities, optionally of one kind, in stable order.
func (x *VectorIndex) sortedRefsLocked(kind domain.ContentKind) []domain.SourceRef {
	refs := make([]domain.SourceRef, 0, len(x.sources))
	for ref := range x.sources {
		if kind == "" || ref.Kind == kind {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Kind != refs[j].Kind {
			return refs[i].Kind < refs[j].Kind
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}
