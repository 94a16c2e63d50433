package domain

import "time"

// CurrentSeason is the season reference resolved to the most recently started season.
const CurrentSeason = "current"

// Season is one graded competition period.
type Season struct {
	ID              int64     `json:"id"`
	Slug            string    `json:"slug"`
	Year            string    `json:"year"`
	SubmissionStart time.Time `json:"submission_start_date"`
	SubmissionEnd   time.Time `json:"submission_end_date"`
}

// SubmissionsOpen reports whether now falls inside the submission window.
func (s Season) SubmissionsOpen(now time.Time) bool {
	return !now.Before(s.SubmissionStart) && now.Before(s.SubmissionEnd)
}

type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

type Player struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Conference values used to order standings.
const (
	ConferenceWest = "West"
	ConferenceEast = "East"
)

type Team struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Conference   string `json:"conference"`
}

type Award struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OddsEntry is one line of a scraped odds snapshot for an award. Rank 1 is the favourite.
type OddsEntry struct {
	AwardID    int64     `json:"award_id"`
	PlayerName string    `json:"player_name"`
	Odds       string    `json:"odds"`
	Rank       int       `json:"rank"`
	ScrapedAt  time.Time `json:"scraped_at"`
}

// Answer is one user's response to one question. IsCorrect nil means pending.
type Answer struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	QuestionID   int64     `json:"question_id"`
	Value        string    `json:"answer"`
	PointsEarned float64   `json:"points_earned"`
	IsCorrect    *bool     `json:"is_correct"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// StandingPrediction is one user's predicted finish for one team.
type StandingPrediction struct {
	ID                int64 `json:"id"`
	UserID            int64 `json:"user_id"`
	SeasonID          int64 `json:"season_id"`
	TeamID            int64 `json:"team_id"`
	PredictedPosition int   `json:"predicted_position"`
	Points            int   `json:"points"`
}

// RegularSeasonStanding is externally ingested ground truth.
type RegularSeasonStanding struct {
	SeasonID   int64  `json:"season_id"`
	TeamID     int64  `json:"team_id"`
	Conference string `json:"conference"`
	Position   int    `json:"position"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}

// TournamentStanding is in-season tournament ground truth. Zero ranks mean "no rank".
type TournamentStanding struct {
	SeasonID          int64  `json:"season_id"`
	TeamID            int64  `json:"team_id"`
	Conference        string `json:"conference"`
	Group             string `json:"ist_group"`
	GroupRank         int    `json:"group_rank"`
	WildcardRank      int    `json:"wildcard_rank"`
	KnockoutRank      int    `json:"knockout_rank"`
	Wins              int    `json:"wins"`
	Losses            int    `json:"losses"`
	PointDifferential int    `json:"point_differential"`
	ClinchedGroup     bool   `json:"clinched_group"`
	ClinchedKnockout  bool   `json:"clinched_knockout"`
	ClinchedWildcard  bool   `json:"clinched_wildcard"`
	IsChampion        bool   `json:"is_champion"`
}

// GamesPlayed is the number of tournament games the team has finished.
func (s TournamentStanding) GamesPlayed() int {
	return s.Wins + s.Losses
}

// UserStats holds the canonical season total for one user.
type UserStats struct {
	UserID   int64   `json:"user_id"`
	SeasonID int64   `json:"season_id"`
	Points   float64 `json:"points"`
}
