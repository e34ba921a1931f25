package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/database"
)

// healthReport is the JSON printed by `lingoclaw health`.
type healthReport struct {
	Status   string                `json:"status"`
	Version  string                `json:"version"`
	Backend  string                `json:"backend"`
	Database database.HealthStatus `json:"database"`
	Schema   int                   `json:"schema_version"`
	Pending  bool                  `json:"migration_pending"`
}

// newHealthCmd creates the `lingoclaw health` command. It exits non-zero
// when the database is unreachable so it can back a container healthcheck.
func newHealthCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			db, err := database.Open(ctx, cfg.Database, newLogger(cmd, cfg))
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			report := healthReport{
				Status:   "ok",
				Version:  version,
				Backend:  string(db.Type),
				Database: db.Health.Status(ctx),
			}
			report.Schema, _ = db.Migrator.CurrentVersion(ctx)
			report.Pending, _ = db.Migrator.NeedsMigration(ctx)
			if !report.Database.Healthy {
				report.Status = "unhealthy"
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Database.Healthy {
				return fmt.Errorf("database unhealthy: %s", report.Database.Error)
			}
			return nil
		},
	}
}
