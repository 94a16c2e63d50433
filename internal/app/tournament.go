package app

import (
	"context"
	"fmt"
	"strings"

	"season-predictions/internal/domain"
)

// GroupStageGames is the number of tournament games each team plays in group play.
const GroupStageGames = 4

// Stage is the tournament phase inferred from standings.
type Stage string

const (
	StageGroup    Stage = "group"
	StageKnockout Stage = "knockout"
)

// InferStage reports knockout once any team has played more than GroupStageGames.
func InferStage(standings []domain.TournamentStanding) Stage {
	maxPlayed := 0
	for _, s := range standings {
		if g := s.GamesPlayed(); g > maxPlayed {
			maxPlayed = g
		}
	}
	if maxPlayed > GroupStageGames {
		return StageKnockout
	}
	return StageGroup
}

// TournamentOutcome decides whether a predicted team satisfies the prediction type.
// ok is false for tiebreakers, which are not graded here.
func TournamentOutcome(v *domain.InSeasonTournamentQuestion, st domain.TournamentStanding) (correct, ok bool) {
	switch v.PredictionType {
	case domain.PredictGroupWinner:
		if v.Group != "" && !strings.EqualFold(v.Group, st.Group) {
			return false, true
		}
		return st.GroupRank == 1, true
	case domain.PredictWildcard:
		// Group winners never occupy a wildcard slot.
		return st.WildcardRank == 1 && st.GroupRank != 1, true
	case domain.PredictConferenceWinner:
		return st.KnockoutRank == 1, true
	case domain.PredictChampion:
		return st.IsChampion, true
	default:
		return false, false
	}
}

// gradeTournament grades in-season tournament answers from tournament standings.
// Knockout-only prediction types stay pending until the knockout stage is
// inferred or forceKnockout is set.
func (r *run) gradeTournament(ctx context.Context, tx Tx, forceKnockout bool) error {
	questions, err := questionIndex(ctx, tx, r.season.ID)
	if err != nil {
		return err
	}
	standings, err := tx.TournamentStandings(ctx, r.season.ID)
	if err != nil {
		return fmt.Errorf("load tournament standings: %w", err)
	}
	answers, err := tx.Answers(ctx, r.season.ID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}

	stage := InferStage(standings)
	r.knockout = stage == StageKnockout
	if forceKnockout {
		r.log.Warn().
			Str("inferred_stage", string(stage)).
			Msg("knockout grading forced by override, standings may be incomplete")
		r.knockout = true
	}

	byTeam := make(map[int64]domain.TournamentStanding, len(standings))
	for _, s := range standings {
		byTeam[s.TeamID] = s
	}

	changed := make([]domain.Answer, 0)
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		v, ok := q.Variant.(*domain.InSeasonTournamentQuestion)
		if !ok {
			continue
		}
		r.tally.processed++

		if v.Tiebreaker() {
			r.skip(SkipTiebreaker).
				Int64("answer_id", a.ID).
				Int64("question_id", q.ID).
				Msg("tiebreaker answers are not graded")
			continue
		}
		if v.PredictionType.KnockoutOnly() && !r.knockout {
			r.skip(SkipKnockoutNotStarted).
				Int64("answer_id", a.ID).
				Int64("question_id", q.ID).
				Str("prediction_type", string(v.PredictionType)).
				Msg("knockout-stage answer left pending")
			continue
		}
		teamID, ok := parseID(strings.TrimSpace(a.Value))
		if !ok {
			r.skip(SkipMalformedAnswer).
				Int64("answer_id", a.ID).
				Str("answer", a.Value).
				Msg("tournament answer is not a team id")
			continue
		}
		st, ok := byTeam[teamID]
		if !ok {
			r.skip(SkipStandingsUnavailable).
				Int64("answer_id", a.ID).
				Int64("team_id", teamID).
				Msg("no tournament standing for team")
			continue
		}

		correct, graded := TournamentOutcome(v, st)
		if !graded {
			continue
		}
		points := 0.0
		if correct {
			points = q.PointValue
		}
		if applyGrade(&a, points, correct) {
			changed = append(changed, a)
		}
	}

	err = inBatches(changed, r.batchSize, func(batch []domain.Answer) error {
		return tx.UpdateAnswerGrades(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("update tournament grades: %w", err)
	}
	r.tally.updated += len(changed)
	return nil
}
