package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/adapters/driving/mcp"
	"github.com/custodia-labs/campus/internal/app"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can query the
school content index.

By default the server speaks JSON-RPC over stdio. Use --port to serve
over HTTP instead, for example to test with the MCP Inspector.

Examples:
  # Stdio mode (default)
  campus mcp serve

  # HTTP mode
  campus mcp serve --port 8090`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	return withApp(cmd, func(a *app.App) error {
		server, err := mcp.NewServer(&mcp.Ports{
			Retrieval: a.Retrieval,
			Settings:  a.Tuning,
			Chat:      a.Chat,
			Sync:      a.Sync,
			Kinds:     a.Registry,
		}, mcp.WithVersion(version))
		if err != nil {
			return err
		}

		if port > 0 {
			addr := fmt.Sprintf(":%d", port)
			fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s/mcp\n", addr)
			return server.RunHTTP(cmd.Context(), addr)
		}
		return server.Run(cmd.Context())
	})
}
