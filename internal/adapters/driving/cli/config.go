package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file holding every default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "campus.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, configForce); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file and environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st := newStyles(cmd.OutOrStdout())
		source := cfg.File
		if source == "" {
			source = "defaults and environment"
		}
		cmd.Printf("%s configuration is valid (%s)\n", st.Success.Render("✓"), source)
		cmd.Printf("  index:   %s\n", cfg.Index.Driver)
		cmd.Printf("  records: %s\n", cfg.Records.Driver)
		cmd.Printf("  cache:   %s\n", cfg.Cache.Driver)
		if cfg.Embedding.APIKey == "" {
			cmd.Println(st.Warning.Render(fmt.Sprintf("  no embedding API key; set %s_EMBEDDING_API_KEY or OPENAI_API_KEY", config.EnvPrefix)))
		}
		if !cfg.Generation.Enabled() {
			cmd.Println(st.Warning.Render("  no generation model; chat answers with the fallback message"))
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
