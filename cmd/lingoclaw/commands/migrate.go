package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/database"
)

// newMigrateCmd creates the `lingoclaw migrate` command.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Applies the schema to the configured database. With --seed it also
inserts the default set of supported languages.

Examples:
  lingoclaw migrate
  lingoclaw migrate --seed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			db, err := database.Open(ctx, cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			before, err := db.Migrator.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			if err := db.Migrator.Migrate(ctx); err != nil {
				return err
			}
			after, err := db.Migrator.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			if before == after {
				fmt.Fprintf(out, "schema already at version %d\n", after)
			} else {
				fmt.Fprintf(out, "schema migrated from version %d to %d\n", before, after)
			}

			seed, _ := cmd.Flags().GetBool("seed")
			if seed {
				if err := db.Stores().Languages.Upsert(ctx, database.DefaultLanguages...); err != nil {
					return err
				}
				fmt.Fprintf(out, "seeded %d languages\n", len(database.DefaultLanguages))
			}
			return nil
		},
	}
	cmd.Flags().Bool("seed", false, "insert the default supported languages")
	return cmd
}
