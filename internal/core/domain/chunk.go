package domain

import (
	"fmt"
	"time"
)

// Chunk is a contiguous slice of a record's normalised text.
// Identity is (Kind, SourceID, Index).
type Chunk struct {
	// Kind is the content kind of the source record.
	Kind ContentKind

	// SourceID is the source record's ID.
	SourceID string

	// Index is the 0-based position within one normalisation pass.
	Index int

	// Text is the chunk content.
	Text string

	// CharStart is the rune offset of the first character in the normalised text.
	CharStart int

	// CharEnd is the rune offset one past the last character.
	CharEnd int
}

// Ref returns the identity of the record the chunk came from.
func (c Chunk) Ref() SourceRef {
	return SourceRef{Kind: c.Kind, ID: c.SourceID}
}

// IndexEntry is a chunk with its embedding, as stored in the vector index.
type IndexEntry struct {
	Chunk

	// Embedding has the configured dimensionality.
	Embedding []float32

	// IndexedAt is the commit time of the sync that wrote the entry.
	IndexedAt time.Time
}

// ScoredEntry pairs an index entry with its similarity to a query.
type ScoredEntry struct {
	Entry IndexEntry
	Score float64
}

// RetrievalResult is a ranked chunk returned for one query.
type RetrievalResult struct {
	// Chunk is the matched passage.
	Chunk Chunk

	// Score is the cosine similarity to the query.
	Score float64
}

// Less orders results by descending score, breaking ties by
// (kind, source id, chunk index) ascending.
func (r RetrievalResult) Less(other RetrievalResult) bool {
	if r.Score != other.Score {
		return r.Score > other.Score
	}
	if r.Chunk.Kind != other.Chunk.Kind {
		return r.Chunk.Kind < other.Chunk.Kind
	}
	if r.Chunk.SourceID != other.Chunk.SourceID {
		return r.Chunk.SourceID < other.Chunk.SourceID
	}
	return r.Chunk.Index < other.Chunk.Index
}

// ValidateEntries checks a replacement set for one source identity:
// every entry belongs to ref, chunk indices run 0..N-1 in order, and
// each embedding has the given dimensionality (0 skips the check).
func ValidateEntries(ref SourceRef, entries []IndexEntry, dimensions int) error {
	for i, e := range entries {
		if e.Ref() != ref {
			return fmt.Errorf("%w: entry %d belongs to %s, not %s", ErrInvalidInput, i, e.Ref(), ref)
		}
		if e.Index != i {
			return fmt.Errorf("%w: entry %d has chunk index %d", ErrInvalidInput, i, e.Index)
		}
		if len(e.Embedding) == 0 {
			return fmt.Errorf("%w: entry %d has no embedding", ErrInvalidInput, i)
		}
		if dimensions > 0 && len(e.Embedding) != dimensions {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrEmbeddingDimensionMismatch, i, len(e.Embedding), dimensions)
		}
	}
	return nil
}
