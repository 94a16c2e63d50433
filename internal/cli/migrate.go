package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"season-predictions/internal/config"
	"season-predictions/internal/infra/postgres"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return runMigrationsWithConfig(ctx, cfg)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()
	return migrateDB(ctx, db, newLogger(cfg.Log.Level, pretty || cfg.Log.Pretty))
}
