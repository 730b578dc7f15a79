package cli

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/app"
	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/core/domain"
)

const testDimensions = 8

const testRecords = `[
  {"kind": "news", "id": "1", "updated_at": "2025-09-01T08:00:00Z",
   "fields": {"title": "Sports day moved", "body": "<p>Sports day is now on <b>Friday</b>.</p>"}},
  {"kind": "faq", "id": "7", "updated_at": "2025-09-01T08:00:00Z",
   "fields": {"question": "When does school start?", "answer": "Gates open at 8:30."}}
]`

// executeCommand runs the root command with args and returns its output.
// Flags are reset first because cobra keeps them between executions.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// useTestConfig writes a config file with seeded memory records, points
// --config at it, and builds apps with deterministic model stubs.
func useTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(seed, []byte(testRecords), 0o600))

	path := filepath.Join(dir, "campus.toml")
	content := fmt.Sprintf("[embedding]\ndimensions = %d\n\n[retrieval]\nthreshold = 0.0\n\n[records]\nseed_file = %q\n%s\n",
		testDimensions, seed, extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	originalOpen := openApp
	openApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return app.New(ctx, cfg,
			app.WithEmbeddingService(hashEmbedder{}),
			app.WithGenerationService(fixedGenerator{}),
		)
	}
	t.Cleanup(func() { openApp = originalOpen })
	return path
}

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

type fixedGenerator struct{}

func (fixedGenerator) Generate(context.Context, domain.GenerationRequest) (string, error) {
	return "Sports day is on Friday.", nil
}

func (fixedGenerator) ModelName() string { return "fixed" }
func (fixedGenerator) Close() error      { return nil }
