package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/app"
	"github.com/custodia-labs/campus/internal/core/domain"
)

var (
	searchTopK      int
	searchThreshold float64
	searchJSON      bool
	searchReindex   bool

	askJSON    bool
	askReindex bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve the passages most similar to a query",
	Long: `Embeds the query and prints the best matching passages with their
similarity scores, exactly as the chat assistant would receive them.

With the memory index nothing persists between runs; pass --reindex to
index the configured records first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question",
	Long: `Answers a question the way the website chat does: retrieve, assemble
context, then generate. Sources are listed below the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of passages (default from config)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", -1, "minimum similarity in [0,1] (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchReindex, "reindex", false, "reindex every kind before searching")

	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	askCmd.Flags().BoolVar(&askReindex, "reindex", false, "reindex every kind before asking")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withApp(cmd, func(a *app.App) error {
		ctx := cmd.Context()
		if searchReindex {
			if err := reindexQuietly(ctx, a); err != nil {
				return err
			}
		}

		settings := a.Tuning.Get()
		topK, threshold := settings.TopK, settings.Threshold
		if searchTopK > 0 {
			topK = searchTopK
		}
		if searchThreshold >= 0 {
			threshold = searchThreshold
		}

		results, err := a.Retrieval.Retrieve(ctx, query, topK, threshold)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if searchJSON {
			return outputJSON(cmd, passagesFrom(results, a.Registry))
		}
		outputResults(cmd, results, a.Registry)
		return nil
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	return withApp(cmd, func(a *app.App) error {
		ctx := cmd.Context()
		if askReindex {
			if err := reindexQuietly(ctx, a); err != nil {
				return err
			}
		}

		resp, err := a.Chat.Ask(ctx, domain.ChatRequest{Message: question})
		if err != nil {
			return fmt.Errorf("ask failed: %w", err)
		}

		if askJSON {
			return outputJSON(cmd, map[string]any{
				"request_id": resp.RequestID,
				"answer":     resp.Answer,
				"degraded":   resp.Degraded,
				"sources":    passagesFrom(resp.Sources, a.Registry),
			})
		}

		st := newStyles(cmd.OutOrStdout())
		cmd.Println(st.Body.PaddingLeft(0).Render(resp.Answer))
		if resp.Degraded {
			cmd.Println(st.Warning.Render("(answered without full context)"))
		}
		if len(resp.Sources) > 0 {
			cmd.Println()
			cmd.Println(st.Title.Render("Sources"))
			for i, r := range resp.Sources {
				cmd.Printf("  [%d] %s %s %s\n", i+1,
					st.Label.Render(a.Registry.Label(r.Chunk.Kind)),
					r.Chunk.SourceID,
					st.Muted.Render(fmt.Sprintf("(%.2f)", r.Score)))
			}
		}
		return nil
	})
}

// passage is the JSON shape of one retrieval result.
type passage struct {
	Kind     string  `json:"kind"`
	Label    string  `json:"label"`
	SourceID string  `json:"source_id"`
	Chunk    int     `json:"chunk"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

func passagesFrom(results []domain.RetrievalResult, reg *domain.KindRegistry) []passage {
	out := make([]passage, 0, len(results))
	for _, r := range results {
		out = append(out, passage{
			Kind:     string(r.Chunk.Kind),
			Label:    reg.Label(r.Chunk.Kind),
			SourceID: r.Chunk.SourceID,
			Chunk:    r.Chunk.Index,
			Score:    r.Score,
			Text:     r.Chunk.Text,
		})
	}
	return out
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputResults(cmd *cobra.Command, results []domain.RetrievalResult, reg *domain.KindRegistry) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title.Render("Results"))
	cmd.Println()
	for i, r := range results {
		// Format: [N] Label id#chunk (score)
		cmd.Printf("  [%d] %s %s#%d %s\n", i+1,
			st.Label.Render(reg.Label(r.Chunk.Kind)),
			r.Chunk.SourceID, r.Chunk.Index,
			st.Muted.Render(fmt.Sprintf("(%.2f)", r.Score)))
		cmd.Println(st.Body.Render(r.Chunk.Text))
		cmd.Println()
	}
}

func reindexQuietly(ctx context.Context, a *app.App) error {
	report, err := a.Sync.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("reindex failed for %d records", report.Failed)
	}
	return nil
}
