package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"season-predictions/internal/domain"
)

// Totals is the outcome of one aggregation pass.
type Totals struct {
	Points StreamPoints
	Users  map[int64]float64
}

// Aggregator rebuilds UserStats from every point stream of a season: non-tournament
// answers, tournament answers and standings predictions. Run order of the graders
// therefore never matters.
type Aggregator struct{}

// Recompute zeroes and rebuilds the season's UserStats inside tx. Nothing is
// written when the stored rows already hold the fresh sums.
func (Aggregator) Recompute(ctx context.Context, tx Tx, seasonID int64) (Totals, error) {
	questions, err := questionIndex(ctx, tx, seasonID)
	if err != nil {
		return Totals{}, err
	}
	answers, err := tx.Answers(ctx, seasonID)
	if err != nil {
		return Totals{}, fmt.Errorf("load answers: %w", err)
	}
	predictions, err := tx.StandingPredictions(ctx, seasonID)
	if err != nil {
		return Totals{}, fmt.Errorf("load standing predictions: %w", err)
	}

	perUser := make(map[int64]decimal.Decimal)
	var standings, props, tournament decimal.Decimal

	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		pts := decimal.NewFromFloat(a.PointsEarned)
		if q.IsTournament() {
			tournament = tournament.Add(pts)
		} else {
			props = props.Add(pts)
		}
		perUser[a.UserID] = perUser[a.UserID].Add(pts)
	}
	for _, p := range predictions {
		pts := decimal.NewFromInt(int64(p.Points))
		standings = standings.Add(pts)
		perUser[p.UserID] = perUser[p.UserID].Add(pts)
	}

	stats := make([]domain.UserStats, 0, len(perUser))
	totals := Totals{
		Points: StreamPoints{
			Standings:  standings.InexactFloat64(),
			Answers:    props.InexactFloat64(),
			Tournament: tournament.InexactFloat64(),
		},
		Users: make(map[int64]float64, len(perUser)),
	}
	for userID, sum := range perUser {
		pts := sum.InexactFloat64()
		totals.Users[userID] = pts
		stats = append(stats, domain.UserStats{UserID: userID, SeasonID: seasonID, Points: pts})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })

	existing, err := tx.UserStats(ctx, seasonID)
	if err != nil {
		return Totals{}, fmt.Errorf("load user stats: %w", err)
	}
	if statsUnchanged(existing, totals.Users) {
		return totals, nil
	}
	if err := tx.ReplaceUserStats(ctx, seasonID, stats); err != nil {
		return Totals{}, fmt.Errorf("replace user stats: %w", err)
	}
	return totals, nil
}

// statsUnchanged reports whether a rebuild would leave the stored rows as they are:
// every fresh user already has a row with the same points and every other row is zero.
func statsUnchanged(existing []domain.UserStats, fresh map[int64]float64) bool {
	seen := 0
	for _, row := range existing {
		pts, ok := fresh[row.UserID]
		if ok {
			seen++
		}
		if row.Points != pts {
			return false
		}
	}
	return seen == len(fresh)
}
