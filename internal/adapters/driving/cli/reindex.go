package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/app"
	"github.com/custodia-labs/campus/internal/core/domain"
)

var (
	reindexJSON bool
	syncDelete  bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [kind...]",
	Short: "Resync every record of the given kinds",
	Long: `Walks every record of the given content kinds (all registered kinds by
default), resyncs each one, and removes index entries whose record no
longer exists.`,
	RunE: runReindex,
}

var syncCmd = &cobra.Command{
	Use:   "sync <kind> <id>",
	Short: "Sync a single record into the index",
	Long: `Reads one record, rebuilds its chunks and embeddings, and replaces its
index entries. Use --delete to remove the record's entries instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexJSON, "json", false, "output the report as JSON")
	syncCmd.Flags().BoolVar(&syncDelete, "delete", false, "remove the record's index entries")
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(syncCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	kinds := make([]domain.ContentKind, 0, len(args))
	for _, arg := range args {
		kinds = append(kinds, domain.ContentKind(strings.ToLower(arg)))
	}

	return withApp(cmd, func(a *app.App) error {
		report, err := a.Sync.Reindex(cmd.Context(), kinds...)
		if err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}

		if reindexJSON {
			return outputJSON(cmd, map[string]any{
				"kinds":   report.Kinds,
				"synced":  report.Synced,
				"retired": report.Retired,
				"failed":  report.Failed,
			})
		}

		st := newStyles(cmd.OutOrStdout())
		names := make([]string, len(report.Kinds))
		for i, k := range report.Kinds {
			names[i] = string(k)
		}
		cmd.Println(st.Title.Render("Reindex complete"))
		cmd.Printf("  Kinds:   %s\n", strings.Join(names, ", "))
		cmd.Printf("  Synced:  %s\n", st.Success.Render(fmt.Sprint(report.Synced)))
		cmd.Printf("  Retired: %d\n", report.Retired)
		if report.Failed > 0 {
			cmd.Printf("  Failed:  %s\n", st.Error.Render(fmt.Sprint(report.Failed)))
			return fmt.Errorf("%d records failed to sync", report.Failed)
		}
		return nil
	})
}

func runSync(cmd *cobra.Command, args []string) error {
	m := domain.Mutation{
		Ref: domain.SourceRef{Kind: domain.ContentKind(strings.ToLower(args[0])), ID: args[1]},
		Op:  domain.OpUpdated,
	}
	if syncDelete {
		m.Op = domain.OpDeleted
	}
	if err := m.Validate(); err != nil {
		return err
	}

	return withApp(cmd, func(a *app.App) error {
		if !a.Registry.Has(m.Ref.Kind) {
			return fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceKind, m.Ref.Kind)
		}
		if err := a.Sync.SyncRecord(cmd.Context(), m); err != nil {
			return fmt.Errorf("sync %s failed: %w", m.Ref, err)
		}

		entries, err := a.Index.Entries(cmd.Context(), m.Ref)
		if err != nil {
			return err
		}
		st := newStyles(cmd.OutOrStdout())
		cmd.Printf("%s %s: %d chunks indexed\n", st.Success.Render("✓"), m.Ref, len(entries))
		return nil
	})
}
