package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/metrics"
	"github.com/custodia-labs/campus/internal/vectormath"
)

// Ensure Ranker implements the interface.
var _ driving.RetrievalService = (*Ranker)(nil)

// Ranker embeds a question and ranks indexed chunks against it.
type Ranker struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	metrics  *metrics.Metrics
}

// NewRanker creates a ranker. m may be nil.
func NewRanker(embedder driven.EmbeddingService, index driven.VectorIndex, m *metrics.Metrics) *Ranker {
	return &Ranker{
		embedder: embedder,
		index:    index,
		metrics:  m,
	}
}

// Retrieve returns at most topK chunks scoring at least threshold, best first.
func (r *Ranker) Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if err := validateRanking(topK, threshold); err != nil {
		return nil, err
	}
	start := time.Now()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var scored []domain.ScoredEntry
	if searcher, ok := r.index.(driven.RankedSearcher); ok {
		if scored, err = searcher.Search(ctx, vector, topK, threshold); err != nil {
			return nil, fmt.Errorf("search index: %w", err)
		}
		// Engine scores only preselect; ranking uses the exact metric
		for i := range scored {
			scored[i].Score = vectormath.Cosine(vector, scored[i].Entry.Embedding)
		}
	} else if scored, err = r.index.ScoreAll(ctx, vector); err != nil {
		return nil, fmt.Errorf("score index: %w", err)
	}
	results := Rank(scored, topK, threshold)

	r.metrics.ObserveRetrieval(time.Since(start), len(results))
	return results, nil
}

// Rank drops entries scoring below threshold, orders the rest by score
// descending with ties broken by (kind, source id, chunk index), and keeps
// the first topK.
func Rank(scored []domain.ScoredEntry, topK int, threshold float64) []domain.RetrievalResult {
	if topK < 1 {
		return nil
	}
	results := make([]domain.RetrievalResult, 0, len(scored))
	for _, s := range scored {
		if s.Score < threshold {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: s.Entry.Chunk, Score: s.Score})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Less(results[j])
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func validateRanking(topK int, threshold float64) error {
	if topK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidInput, topK)
	}
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0,1], got %v", domain.ErrInvalidInput, threshold)
	}
	return nil
}
