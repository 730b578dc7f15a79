package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/core/domain"
)

const testDimensions = 8

const seedRecords = `[
  {"kind": "news", "id": "1", "updated_at": "2025-09-01T08:00:00Z",
   "fields": {"title": "Sports day moved", "body": "<p>Sports day is now on <b>Friday</b>.</p>"}},
  {"kind": "faq", "id": "7", "updated_at": "2025-09-01T08:00:00Z",
   "fields": {"question": "When does school start?", "answer": "Gates open at 8:30."}}
]`

// hashEmbedder returns deterministic positive vectors derived from the text.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, testDimensions)
	for i := range v {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000)/1000 + 0.001
	}
	return v, nil
}

func (e hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, text)
	}
	return out, nil
}

func (hashEmbedder) Dimensions() int   { return testDimensions }
func (hashEmbedder) ModelName() string { return "hash" }
func (hashEmbedder) Close() error      { return nil }

type fixedGenerator struct {
	last domain.GenerationRequest
}

func (g *fixedGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.last = req
	return "Sports day is on Friday.", nil
}

func (g *fixedGenerator) ModelName() string { return "fixed" }
func (g *fixedGenerator) Close() error      { return nil }

// loadConfig writes a config file with the seed records and extra TOML.
func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(seed, []byte(seedRecords), 0o600))

	content := fmt.Sprintf(`
[embedding]
dimensions = %d

[retrieval]
threshold = 0.0

[records]
seed_file = %q
%s
`, testDimensions, seed, extra)
	path := filepath.Join(dir, "campus.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, gen *fixedGenerator) *App {
	t.Helper()
	a, err := New(context.Background(), cfg,
		WithEmbeddingService(hashEmbedder{}),
		WithGenerationService(gen),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_MemoryPipeline(t *testing.T) {
	gen := &fixedGenerator{}
	a := newTestApp(t, loadConfig(t, ""), gen)
	ctx := context.Background()

	err := a.Sync.SyncRecord(ctx, domain.Mutation{
		Ref: domain.SourceRef{Kind: domain.KindNews, ID: "1"},
		Op:  domain.OpCreated,
	})
	require.NoError(t, err)

	n, err := a.Index.Count(ctx)
	require.NoError(t, err)
	assert.Positive(t, n)

	results, err := a.Retrieval.Retrieve(ctx, "sports day", 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, domain.KindNews, results[0].Chunk.Kind)
	assert.NotContains(t, results[0].Chunk.Text, "<b>")

	resp, err := a.Chat.Ask(ctx, domain.ChatRequest{Message: "When is sports day?"})
	require.NoError(t, err)
	assert.Equal(t, "Sports day is on Friday.", resp.Answer)
	assert.False(t, resp.Degraded)
	assert.Contains(t, gen.last.Context, "Sports day")
}

func TestNew_PublishReachesSyncAndCache(t *testing.T) {
	a := newTestApp(t, loadConfig(t, ""), &fixedGenerator{})
	ctx := context.Background()

	require.NoError(t, a.Cache.Set(ctx, "news:index", []byte("stale"), 0))
	require.NoError(t, a.Cache.Set(ctx, "staff:directory", []byte("fresh"), 0))

	require.NoError(t, a.Bus.Publish(ctx, domain.Mutation{
		Ref: domain.SourceRef{Kind: domain.KindNews, ID: "1"},
		Op:  domain.OpUpdated,
	}))
	a.Bus.Wait()

	_, err := a.Cache.Get(ctx, "news:index")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = a.Cache.Get(ctx, "staff:directory")
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		entries, err := a.Index.Entries(ctx, domain.SourceRef{Kind: domain.KindNews, ID: "1"})
		return err == nil && len(entries) > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNew_ReindexSeededRecords(t *testing.T) {
	a := newTestApp(t, loadConfig(t, ""), &fixedGenerator{})

	report, err := a.Sync.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.Zero(t, report.Failed)
}

func TestNew_SQLiteIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	cfg := loadConfig(t, fmt.Sprintf("\n[index]\ndriver = \"sqlite\"\npath = %q\n", path))
	a := newTestApp(t, cfg, &fixedGenerator{})

	err := a.Sync.SyncRecord(context.Background(), domain.Mutation{
		Ref: domain.SourceRef{Kind: domain.KindFAQ, ID: "7"},
		Op:  domain.OpCreated,
	})
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNew_Errors(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		cfg := loadConfig(t, "\n[sync]\nreindex_schedule = \"every tuesday\"\n")
		_, err := New(context.Background(), cfg, WithEmbeddingService(hashEmbedder{}), WithGenerationService(nil))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("missing seed file", func(t *testing.T) {
		cfg := loadConfig(t, "")
		cfg.Records.SeedFile = filepath.Join(t.TempDir(), "missing.json")
		_, err := New(context.Background(), cfg, WithEmbeddingService(hashEmbedder{}), WithGenerationService(nil))
		assert.Error(t, err)
	})

	t.Run("missing kinds file", func(t *testing.T) {
		cfg := loadConfig(t, "")
		cfg.KindsFile = filepath.Join(t.TempDir(), "kinds.yaml")
		_, err := New(context.Background(), cfg, WithEmbeddingService(hashEmbedder{}), WithGenerationService(nil))
		assert.Error(t, err)
	})
}

func TestNew_WithoutGeneratorFallsBack(t *testing.T) {
	a, err := New(context.Background(), loadConfig(t, ""),
		WithEmbeddingService(hashEmbedder{}),
		WithGenerationService(nil),
	)
	require.NoError(t, err)
	defer a.Close()

	resp, err := a.Chat.Ask(context.Background(), domain.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackAnswer, resp.Answer)
	assert.True(t, resp.Degraded)
}

func TestApp_ApplyConfig(t *testing.T) {
	cfg := loadConfig(t, "")
	a := newTestApp(t, cfg, &fixedGenerator{})

	next := *cfg
	next.Retrieval.TopK = 9
	a.ApplyConfig(&next)
	assert.Equal(t, 9, a.Tuning.Get().TopK)

	bad := next
	bad.Retrieval.TopK = 0
	a.ApplyConfig(&bad)
	assert.Equal(t, 9, a.Tuning.Get().TopK)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), loadConfig(t, ""),
		WithEmbeddingService(hashEmbedder{}),
		WithGenerationService(nil),
	)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestApp_HTTPServer(t *testing.T) {
	a := newTestApp(t, loadConfig(t, ""), &fixedGenerator{})

	server, err := a.HTTPServer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
