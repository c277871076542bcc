package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/observability"
)

// env is shared by every subcommand; it is filled in PersistentPreRunE.
type env struct {
	cfg    config.Config
	logger *observability.Logger
}

func NewRootCommand() *cobra.Command {
	e := &env{}

	cmd := &cobra.Command{
		Use:           "govctl",
		Short:         "Operator tooling for the appointment platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg
			e.logger = observability.NewLoggerTo(os.Stderr, "govctl", cfg.Env)
			return nil
		},
	}

	cmd.AddCommand(newMigrateCommand(e))
	cmd.AddCommand(newDumpCommand(e))
	cmd.AddCommand(newRestoreCommand(e))
	cmd.AddCommand(newTokenCommand(e))
	return cmd
}

func (e *env) connect(ctx context.Context) (*pgxpool.Pool, error) {
	return db.ConnectPostgres(ctx, e.cfg.PostgresDSN)
}
