package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/campus/internal/adapters/driven/storage/postgres"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply or roll back Postgres index migrations",
	Long: `Applies the Postgres index schema migrations (up, the default) or rolls
them back (down). --steps limits how many are applied; 0 means all.

The SQLite index migrates itself when opened.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{postgres.DirectionUp, postgres.DirectionDown},
	RunE:      runMigrate,
}

func init() {
	migrateCmd.Flags().IntVarP(&migrateSteps, "steps", "n", 0, "number of migrations to apply (0 = all)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	direction := postgres.DirectionUp
	if len(args) == 1 {
		direction = args[0]
	}
	if migrateSteps < 0 {
		return fmt.Errorf("--steps cannot be negative")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Index.Driver != "postgres" {
		return fmt.Errorf("migrate applies to the postgres index; index.driver is %q", cfg.Index.Driver)
	}

	if err := postgres.Migrate(cfg.Index.DSN, direction, migrateSteps); err != nil {
		return err
	}
	cmd.Printf("migrations %s complete\n", direction)
	return nil
}
