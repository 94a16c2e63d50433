package app

import (
	"context"
	"fmt"

	"season-predictions/internal/domain"
)

// Standings scoring tiers.
const (
	StandingsExactPoints    = 3
	StandingsOffByOnePoints = 1
)

// StandingsPoints scores a predicted finish against the actual one.
func StandingsPoints(predicted, actual int) int {
	diff := predicted - actual
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return StandingsExactPoints
	case 1:
		return StandingsOffByOnePoints
	default:
		return 0
	}
}

// gradeStandings scores every standing prediction of the season. Teams without
// an actual position are skipped, not zeroed; only changed rows are written.
func (r *run) gradeStandings(ctx context.Context, tx Tx) error {
	predictions, err := tx.StandingPredictions(ctx, r.season.ID)
	if err != nil {
		return fmt.Errorf("load standing predictions: %w", err)
	}
	standings, err := tx.RegularSeasonStandings(ctx, r.season.ID)
	if err != nil {
		return fmt.Errorf("load regular season standings: %w", err)
	}

	actual := make(map[int64]int, len(standings))
	for _, s := range standings {
		actual[s.TeamID] = s.Position
	}

	changed := make([]domain.StandingPrediction, 0)
	for _, p := range predictions {
		r.tally.processed++
		pos, ok := actual[p.TeamID]
		if !ok {
			r.skip(SkipStandingsUnavailable).
				Int64("prediction_id", p.ID).
				Int64("team_id", p.TeamID).
				Msg("no actual position for team, leaving prediction untouched")
			continue
		}
		points := StandingsPoints(p.PredictedPosition, pos)
		if points == p.Points {
			continue
		}
		p.Points = points
		changed = append(changed, p)
	}

	err = inBatches(changed, r.batchSize, func(batch []domain.StandingPrediction) error {
		return tx.UpdateStandingPoints(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("update standing points: %w", err)
	}
	r.tally.updated += len(changed)
	return nil
}
