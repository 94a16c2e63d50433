package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 2024100101_create_predictions.sql
var createPredictionsSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createPredictionsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS
				user_stats, tournament_standings, regular_season_standings,
				standing_predictions, answers, superlative_winners, questions,
				odds_snapshots, awards, teams, players, users, seasons`)
			return err
		},
	)
}
