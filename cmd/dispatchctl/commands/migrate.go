package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/dispatch-service/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if dir == "" {
				dir = e.cfg.Postgres.MigrationsDir
			}
			if err := persistence.RunMigrations(ctx, e.pg.Pool, dir, e.logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}
