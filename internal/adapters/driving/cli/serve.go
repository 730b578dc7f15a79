package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/app"
	"github.com/custodia-labs/campus/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Runs the chat, retrieval and mutation webhook endpoints, together with
the Postgres notification listener when records come from Postgres, the
reindex scheduler when one is configured, and the config file watcher.

Retrieval settings (top_k, threshold, max_context_length) are reloaded
when the config file changes; everything else needs a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app.App) error {
			logger.Info("campus %s: index=%s records=%s cache=%s",
				version, a.Config.Index.Driver, a.Config.Records.Driver, a.Config.Cache.Driver)
			return a.Serve(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
