package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultPointValue is applied to questions created without an explicit value.
const DefaultPointValue = 0.5

// QuestionKind tags the concrete variant of a Question.
type QuestionKind string

const (
	KindSuperlative        QuestionKind = "superlative"
	KindProp               QuestionKind = "prop"
	KindPlayerStat         QuestionKind = "player_stat"
	KindHeadToHead         QuestionKind = "head_to_head"
	KindInSeasonTournament QuestionKind = "in_season_tournament"
	KindNBAFinals          QuestionKind = "nba_finals"
)

// Question is the shared base record. Exactly one Variant is attached and its
// Kind always matches the stored tag.
type Question struct {
	ID            int64           `json:"id"`
	SeasonID      int64           `json:"season_id"`
	Text          string          `json:"text"`
	PointValue    float64         `json:"point_value"`
	CorrectAnswer *string         `json:"correct_answer,omitempty"`
	IsManual      bool            `json:"is_manual"`
	LastUpdated   time.Time       `json:"last_updated"`
	Variant       QuestionVariant `json:"-"`
}

// QuestionVariant is implemented only by the six concrete question shapes in this package.
type QuestionVariant interface {
	Kind() QuestionKind
	variant()
}

// Kind returns the variant tag, or "" for a base record without a variant.
func (q Question) Kind() QuestionKind {
	if q.Variant == nil {
		return ""
	}
	return q.Variant.Kind()
}

// HasCorrectAnswer reports whether the question has been resolved.
func (q Question) HasCorrectAnswer() bool {
	return q.CorrectAnswer != nil && strings.TrimSpace(*q.CorrectAnswer) != ""
}

// IsTournament reports whether q belongs to the in-season tournament stream.
func (q Question) IsTournament() bool {
	_, ok := q.Variant.(*InSeasonTournamentQuestion)
	return ok
}

// Validate checks that the variant is set and matches a known kind.
func (q Question) Validate() error {
	if q.Variant == nil {
		return fmt.Errorf("%w: question %d has no variant", ErrMalformedQuestion, q.ID)
	}
	switch v := q.Variant.(type) {
	case *SuperlativeQuestion, *PlayerStatPredictionQuestion, *HeadToHeadQuestion, *NBAFinalsPredictionQuestion:
	case *PropQuestion:
		if v.OutcomeType != OutcomeOverUnder && v.OutcomeType != OutcomeYesNo {
			return fmt.Errorf("%w: question %d has outcome type %q", ErrMalformedQuestion, q.ID, v.OutcomeType)
		}
	case *InSeasonTournamentQuestion:
		if !v.PredictionType.Valid() {
			return fmt.Errorf("%w: question %d has prediction type %q", ErrMalformedQuestion, q.ID, v.PredictionType)
		}
	default:
		return fmt.Errorf("%w: question %d has unknown variant %T", ErrMalformedQuestion, q.ID, v)
	}
	return nil
}

// SuperlativeQuestion covers awards such as MVP. CurrentLeader/RunnerUp are
// odds-derived and provisional until IsFinalized.
type SuperlativeQuestion struct {
	AwardID           int64   `json:"award_id"`
	WinnerIDs         []int64 `json:"winner_ids,omitempty"`
	IsFinalized       bool    `json:"is_finalized"`
	CurrentLeader     string  `json:"current_leader,omitempty"`
	CurrentLeaderOdds string  `json:"current_leader_odds,omitempty"`
	CurrentRunnerUp   string  `json:"current_runner_up,omitempty"`
	RunnerUpOdds      string  `json:"current_runner_up_odds,omitempty"`
}

func (*SuperlativeQuestion) Kind() QuestionKind { return KindSuperlative }
func (*SuperlativeQuestion) variant()           {}

// OutcomeType is the answer shape of a prop question.
type OutcomeType string

const (
	OutcomeOverUnder OutcomeType = "over_under"
	OutcomeYesNo     OutcomeType = "yes_no"
)

type PropQuestion struct {
	OutcomeType     OutcomeType `json:"outcome_type"`
	RelatedPlayerID *int64      `json:"related_player_id,omitempty"`
	Line            *float64    `json:"line,omitempty"`
}

func (*PropQuestion) Kind() QuestionKind { return KindProp }
func (*PropQuestion) variant()           {}

// PlayerStatPredictionQuestion snapshots are display-only and never used in grading.
type PlayerStatPredictionQuestion struct {
	StatCategoryID int64           `json:"stat_category_id"`
	StatType       string          `json:"stat_type"`
	FixedValue     *float64        `json:"fixed_value,omitempty"`
	CurrentLeaders json.RawMessage `json:"current_leaders,omitempty"`
	TopPerformers  json.RawMessage `json:"top_performers,omitempty"`
}

func (*PlayerStatPredictionQuestion) Kind() QuestionKind { return KindPlayerStat }
func (*PlayerStatPredictionQuestion) variant()           {}

type HeadToHeadQuestion struct {
	Team1ID int64 `json:"team1_id"`
	Team2ID int64 `json:"team2_id"`
}

func (*HeadToHeadQuestion) Kind() QuestionKind { return KindHeadToHead }
func (*HeadToHeadQuestion) variant()           {}

// PredictionType selects the tournament grading rule.
type PredictionType string

const (
	PredictGroupWinner      PredictionType = "group_winner"
	PredictWildcard         PredictionType = "wildcard"
	PredictConferenceWinner PredictionType = "conference_winner"
	PredictChampion         PredictionType = "champion"
	PredictTiebreaker       PredictionType = "tiebreaker"
)

// Valid reports whether t is a known prediction type.
func (t PredictionType) Valid() bool {
	switch t {
	case PredictGroupWinner, PredictWildcard, PredictConferenceWinner, PredictChampion, PredictTiebreaker:
		return true
	}
	return false
}

// KnockoutOnly reports whether answers of this type wait for the knockout stage.
func (t PredictionType) KnockoutOnly() bool {
	return t == PredictConferenceWinner || t == PredictChampion
}

type InSeasonTournamentQuestion struct {
	PredictionType PredictionType `json:"prediction_type"`
	Group          string         `json:"ist_group,omitempty"`
	IsTiebreaker   bool           `json:"is_tiebreaker"`
}

func (*InSeasonTournamentQuestion) Kind() QuestionKind { return KindInSeasonTournament }
func (*InSeasonTournamentQuestion) variant()           {}

// Tiebreaker reports whether answers are point totals rather than team ids.
func (v *InSeasonTournamentQuestion) Tiebreaker() bool {
	return v.IsTiebreaker || v.PredictionType == PredictTiebreaker
}

type NBAFinalsPredictionQuestion struct {
	GroupName string `json:"group_name,omitempty"`
}

func (*NBAFinalsPredictionQuestion) Kind() QuestionKind { return KindNBAFinals }
func (*NBAFinalsPredictionQuestion) variant()           {}

// IsWinsTotal reports whether a finals question asks for a number of wins.
func IsWinsTotal(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "how many") && strings.Contains(t, "win")
}
