package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"season-predictions/internal/domain"
)

type seasonModel struct {
	bun.BaseModel `bun:"table:seasons,alias:s"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Slug            string    `bun:"slug,notnull,unique"`
	Year            string    `bun:"year,notnull"`
	SubmissionStart time.Time `bun:"submission_start_date,notnull"`
	SubmissionEnd   time.Time `bun:"submission_end_date,notnull"`
}

func (m seasonModel) toDomain() domain.Season {
	return domain.Season{
		ID:              m.ID,
		Slug:            m.Slug,
		Year:            m.Year,
		SubmissionStart: m.SubmissionStart,
		SubmissionEnd:   m.SubmissionEnd,
	}
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Username    string `bun:"username,notnull"`
	DisplayName string `bun:"display_name,notnull"`
}

type teamModel struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID           int64  `bun:"id,pk,autoincrement"`
	Name         string `bun:"name,notnull"`
	Abbreviation string `bun:"abbreviation,notnull"`
	Conference   string `bun:"conference,notnull"`
}

type playerModel struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type awardModel struct {
	bun.BaseModel `bun:"table:awards,alias:aw"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

type oddsModel struct {
	bun.BaseModel `bun:"table:odds_snapshots,alias:o"`

	ID         int64     `bun:"id,pk,autoincrement"`
	AwardID    int64     `bun:"award_id,notnull"`
	PlayerName string    `bun:"player_name,notnull"`
	Odds       string    `bun:"odds,notnull"`
	Rank       int       `bun:"rank,notnull"`
	ScrapedAt  time.Time `bun:"scraped_at,notnull"`
}

// questionModel flattens the question base and every variant into one row;
// Kind selects which variant columns are meaningful.
type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int64     `bun:"id,pk,autoincrement"`
	SeasonID      int64     `bun:"season_id,notnull"`
	Kind          string    `bun:"kind,notnull"`
	Text          string    `bun:"text,notnull"`
	PointValue    float64   `bun:"point_value,notnull"`
	CorrectAnswer *string   `bun:"correct_answer"`
	IsManual      bool      `bun:"is_manual,notnull"`
	LastUpdated   time.Time `bun:"last_updated,notnull"`

	AwardID             *int64  `bun:"award_id"`
	IsFinalized         bool    `bun:"is_finalized,notnull"`
	CurrentLeader       *string `bun:"current_leader"`
	CurrentLeaderOdds   *string `bun:"current_leader_odds"`
	CurrentRunnerUp     *string `bun:"current_runner_up"`
	CurrentRunnerUpOdds *string `bun:"current_runner_up_odds"`

	OutcomeType     *string  `bun:"outcome_type"`
	RelatedPlayerID *int64   `bun:"related_player_id"`
	Line            *float64 `bun:"line"`

	StatCategoryID *int64          `bun:"stat_category_id"`
	StatType       *string         `bun:"stat_type"`
	FixedValue     *float64        `bun:"fixed_value"`
	CurrentLeaders json.RawMessage `bun:"current_leaders,type:jsonb,nullzero"`
	TopPerformers  json.RawMessage `bun:"top_performers,type:jsonb,nullzero"`

	Team1ID *int64 `bun:"team1_id"`
	Team2ID *int64 `bun:"team2_id"`

	PredictionType *string `bun:"prediction_type"`
	ISTGroup       *string `bun:"ist_group"`
	IsTiebreaker   bool    `bun:"is_tiebreaker,notnull"`

	GroupName *string `bun:"group_name"`
}

func questionFromDomain(q domain.Question) (questionModel, error) {
	m := questionModel{
		ID:            q.ID,
		SeasonID:      q.SeasonID,
		Kind:          string(q.Kind()),
		Text:          q.Text,
		PointValue:    q.PointValue,
		CorrectAnswer: q.CorrectAnswer,
		IsManual:      q.IsManual,
		LastUpdated:   q.LastUpdated,
	}
	switch v := q.Variant.(type) {
	case *domain.SuperlativeQuestion:
		m.AwardID = &v.AwardID
		m.IsFinalized = v.IsFinalized
		m.CurrentLeader = optString(v.CurrentLeader)
		m.CurrentLeaderOdds = optString(v.CurrentLeaderOdds)
		m.CurrentRunnerUp = optString(v.CurrentRunnerUp)
		m.CurrentRunnerUpOdds = optString(v.RunnerUpOdds)
	case *domain.PropQuestion:
		m.OutcomeType = optString(string(v.OutcomeType))
		m.RelatedPlayerID = v.RelatedPlayerID
		m.Line = v.Line
	case *domain.PlayerStatPredictionQuestion:
		m.StatCategoryID = &v.StatCategoryID
		m.StatType = optString(v.StatType)
		m.FixedValue = v.FixedValue
		m.CurrentLeaders = v.CurrentLeaders
		m.TopPerformers = v.TopPerformers
	case *domain.HeadToHeadQuestion:
		m.Team1ID = &v.Team1ID
		m.Team2ID = &v.Team2ID
	case *domain.InSeasonTournamentQuestion:
		m.PredictionType = optString(string(v.PredictionType))
		m.ISTGroup = optString(v.Group)
		m.IsTiebreaker = v.IsTiebreaker
	case *domain.NBAFinalsPredictionQuestion:
		m.GroupName = optString(v.GroupName)
	default:
		return m, fmt.Errorf("%w: question %d has no variant", domain.ErrMalformedQuestion, q.ID)
	}
	return m, nil
}

func (m questionModel) toDomain(winners []int64) (domain.Question, error) {
	q := domain.Question{
		ID:            m.ID,
		SeasonID:      m.SeasonID,
		Text:          m.Text,
		PointValue:    m.PointValue,
		CorrectAnswer: m.CorrectAnswer,
		IsManual:      m.IsManual,
		LastUpdated:   m.LastUpdated,
	}
	switch domain.QuestionKind(m.Kind) {
	case domain.KindSuperlative:
		if m.AwardID == nil {
			return q, fmt.Errorf("%w: superlative question %d has no award", domain.ErrMalformedQuestion, m.ID)
		}
		q.Variant = &domain.SuperlativeQuestion{
			AwardID:           *m.AwardID,
			WinnerIDs:         winners,
			IsFinalized:       m.IsFinalized,
			CurrentLeader:     deref(m.CurrentLeader),
			CurrentLeaderOdds: deref(m.CurrentLeaderOdds),
			CurrentRunnerUp:   deref(m.CurrentRunnerUp),
			RunnerUpOdds:      deref(m.CurrentRunnerUpOdds),
		}
	case domain.KindProp:
		q.Variant = &domain.PropQuestion{
			OutcomeType:     domain.OutcomeType(deref(m.OutcomeType)),
			RelatedPlayerID: m.RelatedPlayerID,
			Line:            m.Line,
		}
	case domain.KindPlayerStat:
		v := &domain.PlayerStatPredictionQuestion{
			StatType:       deref(m.StatType),
			FixedValue:     m.FixedValue,
			CurrentLeaders: m.CurrentLeaders,
			TopPerformers:  m.TopPerformers,
		}
		if m.StatCategoryID != nil {
			v.StatCategoryID = *m.StatCategoryID
		}
		q.Variant = v
	case domain.KindHeadToHead:
		if m.Team1ID == nil || m.Team2ID == nil {
			return q, fmt.Errorf("%w: head-to-head question %d is missing a team", domain.ErrMalformedQuestion, m.ID)
		}
		q.Variant = &domain.HeadToHeadQuestion{Team1ID: *m.Team1ID, Team2ID: *m.Team2ID}
	case domain.KindInSeasonTournament:
		q.Variant = &domain.InSeasonTournamentQuestion{
			PredictionType: domain.PredictionType(deref(m.PredictionType)),
			Group:          deref(m.ISTGroup),
			IsTiebreaker:   m.IsTiebreaker,
		}
	case domain.KindNBAFinals:
		q.Variant = &domain.NBAFinalsPredictionQuestion{GroupName: deref(m.GroupName)}
	default:
		return q, fmt.Errorf("%w: question %d has kind %q", domain.ErrMalformedQuestion, m.ID, m.Kind)
	}
	return q, q.Validate()
}

type winnerModel struct {
	bun.BaseModel `bun:"table:superlative_winners,alias:w"`

	QuestionID int64 `bun:"question_id,pk"`
	PlayerID   int64 `bun:"player_id,pk"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       int64     `bun:"user_id,notnull"`
	QuestionID   int64     `bun:"question_id,notnull"`
	Answer       string    `bun:"answer,notnull"`
	PointsEarned float64   `bun:"points_earned,notnull"`
	IsCorrect    *bool     `bun:"is_correct"`
	SubmittedAt  time.Time `bun:"submitted_at,notnull"`
}

func (m answerModel) toDomain() domain.Answer {
	return domain.Answer{
		ID:           m.ID,
		UserID:       m.UserID,
		QuestionID:   m.QuestionID,
		Value:        m.Answer,
		PointsEarned: m.PointsEarned,
		IsCorrect:    m.IsCorrect,
		SubmittedAt:  m.SubmittedAt,
	}
}

type standingPredictionModel struct {
	bun.BaseModel `bun:"table:standing_predictions,alias:sp"`

	ID                int64 `bun:"id,pk,autoincrement"`
	UserID            int64 `bun:"user_id,notnull"`
	SeasonID          int64 `bun:"season_id,notnull"`
	TeamID            int64 `bun:"team_id,notnull"`
	PredictedPosition int   `bun:"predicted_position,notnull"`
	Points            int   `bun:"points,notnull"`
}

func (m standingPredictionModel) toDomain() domain.StandingPrediction {
	return domain.StandingPrediction{
		ID:                m.ID,
		UserID:            m.UserID,
		SeasonID:          m.SeasonID,
		TeamID:            m.TeamID,
		PredictedPosition: m.PredictedPosition,
		Points:            m.Points,
	}
}

type regularStandingModel struct {
	bun.BaseModel `bun:"table:regular_season_standings,alias:rs"`

	SeasonID   int64  `bun:"season_id,pk"`
	TeamID     int64  `bun:"team_id,pk"`
	Conference string `bun:"conference,notnull"`
	Position   int    `bun:"position,notnull"`
	Wins       int    `bun:"wins,notnull"`
	Losses     int    `bun:"losses,notnull"`
}

type tournamentStandingModel struct {
	bun.BaseModel `bun:"table:tournament_standings,alias:ts"`

	SeasonID          int64  `bun:"season_id,pk"`
	TeamID            int64  `bun:"team_id,pk"`
	Conference        string `bun:"conference,notnull"`
	Group             string `bun:"ist_group,notnull"`
	GroupRank         int    `bun:"group_rank,notnull"`
	WildcardRank      int    `bun:"wildcard_rank,notnull"`
	KnockoutRank      int    `bun:"knockout_rank,notnull"`
	Wins              int    `bun:"wins,notnull"`
	Losses            int    `bun:"losses,notnull"`
	PointDifferential int    `bun:"point_differential,notnull"`
	ClinchedGroup     bool   `bun:"clinched_group,notnull"`
	ClinchedKnockout  bool   `bun:"clinched_knockout,notnull"`
	ClinchedWildcard  bool   `bun:"clinched_wildcard,notnull"`
	IsChampion        bool   `bun:"is_champion,notnull"`
}

type userStatsModel struct {
	bun.BaseModel `bun:"table:user_stats,alias:us"`

	UserID   int64   `bun:"user_id,pk"`
	SeasonID int64   `bun:"season_id,pk"`
	Points   float64 `bun:"points,notnull"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
