// Package commands holds the dispatchctl operator commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/service"
)

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:   "dispatchctl",
	Short: "Operator tooling for the dispatch service.",
	Long: `dispatchctl applies schema migrations, bootstraps staff and client
companies, and issues access tokens against the configured Postgres database.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newStaffCommand())
	rootCmd.AddCommand(newCompanyCommand())
	rootCmd.AddCommand(newTokenCommand())
}

// env is what every database-backed command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func (e *env) Close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func (e *env) directory() *service.DirectoryService {
	return service.NewDirectoryService(persistence.OpenStore(e.pg, e.cfg.Postgres), e.logger)
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pg: pg}, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
