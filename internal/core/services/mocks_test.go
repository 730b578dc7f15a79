package services

import (
	"context"
	"errors"
	"hash/fnv"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// --- Shared fixtures and mock implementations ---

const testDimensions = 8

var errServiceDown = errors.New("service down")

func testRegistry(t *testing.T) *domain.KindRegistry {
	t.Helper()
	reg, err := domain.NewKindRegistry(
		domain.KindSpec{
			Kind:           domain.KindNews,
			Label:          "News",
			FieldPaths:     []string{"title", "body"},
			HTMLFieldPaths: []string{"body"},
			CacheKeys:      []string{"homepage:latest-news", "news:index"},
			CacheTags:      []string{"news"},
		},
		domain.KindSpec{
			Kind:       domain.KindFAQ,
			Label:      "FAQ",
			FieldPaths: []string{"question", "answer"},
			CacheKeys:  []string{"faq:index"},
		},
		domain.KindSpec{
			Kind:       domain.KindStaff,
			Label:      "Staff",
			FieldPaths: []string{"name", "role"},
		},
	)
	require.NoError(t, err)
	return reg
}

// stubEmbedder implements driven.EmbeddingService with deterministic
// vectors derived from the text.
type stubEmbedder struct {
	mu         stdsync.Mutex
	dimensions int
	vectors    map[string][]float32
	err        error
	failTimes  int
	calls      int
	texts      int

	// gate, when set, blocks EmbedBatch until closed. started receives
	// one value per blocked call.
	gate    chan struct{}
	started chan struct{}
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		dimensions: testDimensions,
		vectors:    make(map[string][]float32),
	}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	gate, started := e.gate, e.started
	e.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.texts += len(texts)
	if e.failTimes > 0 {
		e.failTimes--
		return nil, errServiceDown
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
			continue
		}
		out[i] = hashVector(text, e.dimensions)
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int   { return e.dimensions }
func (e *stubEmbedder) ModelName() string { return "stub-embedding" }
func (e *stubEmbedder) Close() error      { return nil }

func (e *stubEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *stubEmbedder) setGate(gate, started chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate, e.started = gate, started
}

func hashVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000)/1000 + 0.001
	}
	return v
}

// failingIndex wraps the memory index and fails writes on demand.
type failingIndex struct {
	*memory.VectorIndex
	mu        stdsync.Mutex
	upsertErr error
	deleteErr error
	upserts   int
}

func newFailingIndex() *failingIndex {
	return &failingIndex{VectorIndex: memory.NewVectorIndex(testDimensions)}
}

func (f *failingIndex) UpsertSource(ctx context.Context, ref domain.SourceRef, entries []domain.IndexEntry) error {
	f.mu.Lock()
	f.upserts++
	err := f.upsertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.VectorIndex.UpsertSource(ctx, ref, entries)
}

func (f *failingIndex) DeleteSource(ctx context.Context, ref domain.SourceRef) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.VectorIndex.DeleteSource(ctx, ref)
}

func (f *failingIndex) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

// rankedIndex preselects in "engine" the way a database might: every entry
// at or above minScore, in reverse identity order, with scores off by a
// little.
type rankedIndex struct {
	*memory.VectorIndex
	searched bool
}

var _ driven.RankedSearcher = (*rankedIndex)(nil)

func (r *rankedIndex) Search(ctx context.Context, query []float32, _ int, minScore float64) ([]domain.ScoredEntry, error) {
	r.searched = true
	scored, err := r.ScoreAll(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []domain.ScoredEntry
	for i := len(scored) - 1; i >= 0; i-- {
		if scored[i].Score >= minScore-1e-3 {
			s := scored[i]
			s.Score += 1e-4
			out = append(out, s)
		}
	}
	return out, nil
}

// stubRetriever implements driving.RetrievalService.
type stubRetriever struct {
	results []domain.RetrievalResult
	err     error
	topK    int
}

func (r *stubRetriever) Retrieve(_ context.Context, _ string, topK int, _ float64) ([]domain.RetrievalResult, error) {
	r.topK = topK
	if r.err != nil {
		return nil, r.err
	}
	return r.results, nil
}

// stubGenerator implements driven.GenerationService.
type stubGenerator struct {
	answer    string
	err       error
	failTimes int
	calls     int
	last      domain.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.calls++
	g.last = req
	if g.failTimes > 0 {
		g.failTimes--
		return "", errServiceDown
	}
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *stubGenerator) ModelName() string { return "stub-chat" }
func (g *stubGenerator) Close() error      { return nil }

// flakyCache wraps the memory cache store and fails named keys and tags.
type flakyCache struct {
	*memory.CacheStore
	failKeys map[string]bool
	failTags map[string]bool
	deleted  []string
}

func newFlakyCache() *flakyCache {
	return &flakyCache{
		CacheStore: memory.NewCacheStore(),
		failKeys:   make(map[string]bool),
		failTags:   make(map[string]bool),
	}
}

func (c *flakyCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if c.failKeys[k] {
			return errServiceDown
		}
	}
	c.deleted = append(c.deleted, keys...)
	return c.CacheStore.Delete(ctx, keys...)
}

func (c *flakyCache) InvalidateTag(ctx context.Context, tag string) error {
	if c.failTags[tag] {
		return errServiceDown
	}
	return c.CacheStore.InvalidateTag(ctx, tag)
}
