package app

import (
	"context"
	"time"

	"season-predictions/internal/domain"
)

// Reader exposes the read side of the persistence layer.
type Reader interface {
	SeasonBySlug(ctx context.Context, slug string) (domain.Season, error)
	// LatestSeason returns the most recently started season as of now.
	LatestSeason(ctx context.Context, now time.Time) (domain.Season, error)
	Question(ctx context.Context, id int64) (domain.Question, error)
	Questions(ctx context.Context, seasonID int64) ([]domain.Question, error)
	Answers(ctx context.Context, seasonID int64) ([]domain.Answer, error)
	StandingPredictions(ctx context.Context, seasonID int64) ([]domain.StandingPrediction, error)
	RegularSeasonStandings(ctx context.Context, seasonID int64) ([]domain.RegularSeasonStanding, error)
	TournamentStandings(ctx context.Context, seasonID int64) ([]domain.TournamentStanding, error)
	UserStats(ctx context.Context, seasonID int64) ([]domain.UserStats, error)
	Users(ctx context.Context, ids []int64) ([]domain.User, error)
	Teams(ctx context.Context) ([]domain.Team, error)
	Award(ctx context.Context, id int64) (domain.Award, error)
	LatestOdds(ctx context.Context, awardID int64) ([]domain.OddsEntry, error)
	PlayerByName(ctx context.Context, name string) (domain.Player, bool, error)
}

// Writer is only reachable inside a transaction.
type Writer interface {
	// UpdateAnswerGrades persists points_earned and is_correct for the given rows.
	UpdateAnswerGrades(ctx context.Context, answers []domain.Answer) error
	UpdateStandingPoints(ctx context.Context, predictions []domain.StandingPrediction) error
	// ReplaceUserStats zeroes every row of the season, then upserts stats.
	ReplaceUserStats(ctx context.Context, seasonID int64, stats []domain.UserStats) error
	SaveQuestion(ctx context.Context, q domain.Question) error
	AddSuperlativeWinner(ctx context.Context, questionID, playerID int64) error
}

type Tx interface {
	Reader
	Writer
}

// Store is the persistence layer. InTx commits only if fn returns nil.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// CatalogLoader reads the full player and team catalogs.
type CatalogLoader interface {
	LoadPlayers(ctx context.Context) ([]domain.Player, error)
	LoadTeams(ctx context.Context) ([]domain.Team, error)
}

// LookupCache serves id->name tables. Refresh clears and rebuilds them.
type LookupCache interface {
	Tables(ctx context.Context) (LookupTables, error)
	Refresh(ctx context.Context) (LookupTables, error)
}

// Leaderboard views cached per season.
const (
	ViewMain       = "main"
	ViewTournament = "tournament"
)

// LeaderboardCache stores built leaderboards. Implementations are best-effort.
type LeaderboardCache interface {
	Get(ctx context.Context, seasonSlug, view string) (domain.Leaderboard, bool)
	Put(ctx context.Context, seasonSlug, view string, lb domain.Leaderboard)
	Invalidate(ctx context.Context, seasonSlug string)
}

// Publisher fans a rebuilt leaderboard out to live subscribers.
type Publisher interface {
	Publish(seasonSlug string, lb domain.Leaderboard)
}
