package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/kinds"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the registered content kinds",
	Long: `Lists each content kind with the fields it indexes and the website
caches invalidated when one of its records changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := kinds.Load(cfg.KindsFile)
		if err != nil {
			return err
		}

		st := newStyles(cmd.OutOrStdout())
		for _, k := range reg.Kinds() {
			spec, _ := reg.Lookup(k)
			cmd.Printf("%s %s\n", st.Title.Render(string(k)), st.Muted.Render("("+spec.Label+")"))
			if spec.Table != "" {
				cmd.Printf("  table:  %s\n", spec.Table)
			}
			cmd.Printf("  fields: %s\n", strings.Join(spec.FieldPaths, ", "))
			if len(spec.CacheKeys) > 0 {
				cmd.Printf("  caches: %s\n", strings.Join(spec.CacheKeys, ", "))
			}
			if len(spec.CacheTags) > 0 {
				cmd.Printf("  tags:   %s\n", strings.Join(spec.CacheTags, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
