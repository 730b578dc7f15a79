// Package cli implements the campus command line with cobra.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/app"
	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/logger"
)

var (
	version = "dev"
	cfgFile string
	verbose bool
)

// openApp builds the services for commands that need them.
// Tests replace it to avoid reaching the model endpoints.
var openApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

var rootCmd = &cobra.Command{
	Use:   "campus",
	Short: "Content indexing and grounded chat for school websites",
	Long: `campus keeps a semantic index of school website content in step with
the CMS, and answers visitor questions grounded on that content.

Run "campus serve" to start the HTTP API, or "campus config init" to
write a config file with every default.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default ./campus.toml, then /etc/campus/campus.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config selected by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Verbose {
		logger.SetVerbose(true)
	}
	if cfg.File != "" {
		logger.Debug("config: %s", cfg.File)
	}
	return cfg, nil
}

// withApp runs fn with the wired services and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("starting campus: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
