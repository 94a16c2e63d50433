package domain

import "time"

// Leaderboard category names.
const (
	CategoryStandings  = "Regular Season Standings"
	CategoryAwards     = "Player Awards"
	CategoryProps      = "Props & Yes/No"
	CategoryTournament = "In-Season Tournament"
)

// BadgeBestInCategory marks the top scorer of a category.
const BadgeBestInCategory = "best_in_category"

// Prediction is one line of a user's category breakdown. Standings and answer
// rows share the shape; fields that do not apply are omitted.
type Prediction struct {
	QuestionID        int64          `json:"question_id,omitempty"`
	Question          string         `json:"question,omitempty"`
	Answer            string         `json:"answer,omitempty"`
	CorrectAnswer     string         `json:"correct_answer,omitempty"`
	PredictionType    PredictionType `json:"prediction_type,omitempty"`
	Group             string         `json:"group,omitempty"`
	TeamID            int64          `json:"team_id,omitempty"`
	Team              string         `json:"team,omitempty"`
	Conference        string         `json:"conference,omitempty"`
	PredictedPosition int            `json:"predicted_position,omitempty"`
	ActualPosition    *int           `json:"actual_position,omitempty"`
	Correct           *bool          `json:"correct"`
	Points            float64        `json:"points"`
}

type CategoryBreakdown struct {
	Points      float64      `json:"points"`
	MaxPoints   float64      `json:"max_points"`
	Predictions []Prediction `json:"predictions"`
}

type Badge struct {
	Type     string  `json:"type"`
	Category string  `json:"category"`
	Points   float64 `json:"points"`
}

// Insight is a notable pick annotated with the global correct rate of its question.
type Insight struct {
	QuestionID int64   `json:"question_id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	GlobalRate float64 `json:"global_rate"`
}

type LeaderboardEntry struct {
	ID          int64                         `json:"id"`
	Rank        int                           `json:"rank"`
	Username    string                        `json:"username"`
	DisplayName string                        `json:"display_name"`
	TotalPoints float64                       `json:"total_points"`
	Accuracy    int                           `json:"accuracy"`
	Categories  map[string]*CategoryBreakdown `json:"categories"`
	Badges      []Badge                       `json:"badges"`
	HardWins    []Insight                     `json:"hard_wins"`
	EasyMisses  []Insight                     `json:"easy_misses"`
}

type SeasonInfo struct {
	Slug              string    `json:"slug"`
	Year              string    `json:"year"`
	SubmissionEndDate time.Time `json:"submission_end_date"`
	SubmissionsOpen   bool      `json:"submissions_open"`
}

// Leaderboard is the response served by the public leaderboard surface.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"leaderboard"`
	Season  SeasonInfo         `json:"season"`
}
