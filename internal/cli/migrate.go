package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flowgent/flowgent/internal/config"
	"github.com/flowgent/flowgent/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply every pending embedded migration to the configured database.

Examples:
  flowgent migrate          Apply pending migrations
  flowgent migrate status   Show applied and pending migrations`,
	RunE: runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// openDatabase loads configuration and opens the configured database.
func openDatabase() (*config.Config, *database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	// Open applies pending migrations.
	_, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Database is up to date")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	_, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.MigrationStatus(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")
	for _, m := range status {
		state, at := "pending", "-"
		if m.Applied {
			state, at = "applied", m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, state, at)
	}
	return w.Flush()
}
