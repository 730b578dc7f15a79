package services

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/vectormath"
)

// unitAt returns a vector whose cosine similarity to the first axis is s.
func unitAt(s float64) []float32 {
	v := make([]float32, testDimensions)
	v[0] = float32(s)
	v[1] = float32(math.Sqrt(1 - s*s))
	return v
}

func axis() []float32 {
	v := make([]float32, testDimensions)
	v[0] = 1
	return v
}

func seedScores(t *testing.T, idx *memory.VectorIndex, scores ...float64) {
	t.Helper()
	for i, s := range scores {
		ref := domain.SourceRef{Kind: domain.KindNews, ID: fmt.Sprintf("n%d", i)}
		require.NoError(t, idx.UpsertSource(context.Background(), ref, []domain.IndexEntry{{
			Chunk:     domain.Chunk{Kind: ref.Kind, SourceID: ref.ID, Text: fmt.Sprintf("passage %v", s)},
			Embedding: unitAt(s),
		}}))
	}
}

func scores(results []domain.RetrievalResult) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = math.Round(r.Score*100) / 100
	}
	return out
}

func TestRanker_ThresholdAndTopK(t *testing.T) {
	idx := memory.NewVectorIndex(testDimensions)
	seedScores(t, idx, 0.9, 0.8, 0.6, 0.4, 0.3, 0.2, 0.1, 0.55)
	embedder := newStubEmbedder()
	embedder.vectors["when is the concert"] = axis()

	results, err := NewRanker(embedder, idx, nil).Retrieve(context.Background(), "when is the concert", 5, 0.5)

	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.8, 0.6, 0.55}, scores(results))
}

func TestRanker_TopKTruncates(t *testing.T) {
	idx := memory.NewVectorIndex(testDimensions)
	seedScores(t, idx, 0.9, 0.8, 0.6, 0.4)
	embedder := newStubEmbedder()
	embedder.vectors["q"] = axis()

	results, err := NewRanker(embedder, idx, nil).Retrieve(context.Background(), "q", 2, 0)

	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.8}, scores(results))
}

func TestRanker_EmptyIndexIsNotAnError(t *testing.T) {
	results, err := NewRanker(newStubEmbedder(), memory.NewVectorIndex(testDimensions), nil).
		Retrieve(context.Background(), "anything", 5, 0.5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRanker_UsesEngineSearchWhenAvailable(t *testing.T) {
	idx := &rankedIndex{VectorIndex: memory.NewVectorIndex(testDimensions)}
	seedScores(t, idx.VectorIndex, 0.9, 0.8, 0.6, 0.4, 0.3, 0.2, 0.1, 0.55)
	embedder := newStubEmbedder()
	embedder.vectors["q"] = axis()

	results, err := NewRanker(embedder, idx, nil).Retrieve(context.Background(), "q", 5, 0.5)

	require.NoError(t, err)
	assert.True(t, idx.searched)
	assert.Equal(t, []float64{0.9, 0.8, 0.6, 0.55}, scores(results))
}

func TestRanker_EngineCandidatesRankedExactly(t *testing.T) {
	idx := &rankedIndex{VectorIndex: memory.NewVectorIndex(testDimensions)}
	for _, id := range []string{"ab", "a-c", "B", "a"} {
		ref := domain.SourceRef{Kind: domain.KindNews, ID: id}
		require.NoError(t, idx.UpsertSource(context.Background(), ref, []domain.IndexEntry{{
			Chunk:     domain.Chunk{Kind: ref.Kind, SourceID: id, Text: id},
			Embedding: unitAt(0.7),
		}}))
	}
	embedder := newStubEmbedder()
	embedder.vectors["q"] = axis()

	results, err := NewRanker(embedder, idx, nil).Retrieve(context.Background(), "q", 3, 0.5)

	require.NoError(t, err)
	require.Len(t, results, 3)
	ids := []string{results[0].Chunk.SourceID, results[1].Chunk.SourceID, results[2].Chunk.SourceID}
	assert.Equal(t, []string{"B", "a", "a-c"}, ids)
	for _, r := range results {
		assert.Equal(t, vectormath.Cosine(axis(), unitAt(0.7)), r.Score)
	}
}

func TestRanker_EngineScoresDoNotDecideThreshold(t *testing.T) {
	idx := &rankedIndex{VectorIndex: memory.NewVectorIndex(testDimensions)}
	seedScores(t, idx.VectorIndex, 0.9, 0.4999)
	embedder := newStubEmbedder()
	embedder.vectors["q"] = axis()

	// The engine inflates 0.4999 past the threshold; the exact score does not reach it
	results, err := NewRanker(embedder, idx, nil).Retrieve(context.Background(), "q", 5, 0.5)

	require.NoError(t, err)
	assert.Equal(t, []float64{0.9}, scores(results))
}

func TestRanker_InvalidInput(t *testing.T) {
	ranker := NewRanker(newStubEmbedder(), memory.NewVectorIndex(testDimensions), nil)
	tests := []struct {
		name      string
		query     string
		topK      int
		threshold float64
	}{
		{"empty query", "  ", 5, 0.5},
		{"zero top k", "q", 0, 0.5},
		{"negative threshold", "q", 5, -0.1},
		{"threshold above one", "q", 5, 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ranker.Retrieve(context.Background(), tt.query, tt.topK, tt.threshold)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestRanker_EmbeddingFailure(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.err = errServiceDown

	_, err := NewRanker(embedder, memory.NewVectorIndex(testDimensions), nil).
		Retrieve(context.Background(), "q", 5, 0.5)

	assert.ErrorIs(t, err, errServiceDown)
}

func TestRanker_Cancelled(t *testing.T) {
	idx := memory.NewVectorIndex(testDimensions)
	seedScores(t, idx, 0.9)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRanker(newStubEmbedder(), idx, nil).Retrieve(ctx, "q", 5, 0.5)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRank_TieBreak(t *testing.T) {
	entry := func(kind domain.ContentKind, id string, index int) domain.IndexEntry {
		return domain.IndexEntry{Chunk: domain.Chunk{Kind: kind, SourceID: id, Index: index}}
	}
	scored := []domain.ScoredEntry{
		{Entry: entry(domain.KindNews, "b", 0), Score: 0.7},
		{Entry: entry(domain.KindNews, "a", 1), Score: 0.7},
		{Entry: entry(domain.KindFAQ, "z", 0), Score: 0.7},
		{Entry: entry(domain.KindNews, "a", 0), Score: 0.7},
		{Entry: entry(domain.KindPage, "home", 0), Score: 0.9},
	}

	results := Rank(scored, 10, 0.5)

	var got []string
	for _, r := range results {
		got = append(got, fmt.Sprintf("%s/%s#%d", r.Chunk.Kind, r.Chunk.SourceID, r.Chunk.Index))
	}
	assert.Equal(t, []string{"page/home#0", "faq/z#0", "news/a#0", "news/a#1", "news/b#0"}, got)
}

func TestRank_ThresholdIsInclusive(t *testing.T) {
	scored := []domain.ScoredEntry{{Score: 0.5}, {Score: 0.4999}}

	results := Rank(scored, 5, 0.5)

	require.Len(t, results, 1)
	assert.Equal(t, 0.5, results[0].Score)
}

func TestRank_Deterministic(t *testing.T) {
	scored := []domain.ScoredEntry{
		{Entry: domain.IndexEntry{Chunk: domain.Chunk{Kind: domain.KindNews, SourceID: "1"}}, Score: 0.6},
		{Entry: domain.IndexEntry{Chunk: domain.Chunk{Kind: domain.KindNews, SourceID: "2"}}, Score: 0.6},
		{Entry: domain.IndexEntry{Chunk: domain.Chunk{Kind: domain.KindNews, SourceID: "3"}}, Score: 0.8},
	}
	reversed := []domain.ScoredEntry{scored[2], scored[1], scored[0]}

	assert.Equal(t, Rank(scored, 3, 0), Rank(reversed, 3, 0))
}
