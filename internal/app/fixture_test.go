package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
	"season-predictions/internal/infra/memory"
)

var fixtureNow = time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	season  domain.Season
	lookups *memory.LookupCache
	grading *app.GradingService
	board   *app.LeaderboardService
	admin   *app.AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	season, err := store.AddSeason(domain.Season{
		Slug:            "2024-25",
		Year:            "2024-25",
		SubmissionStart: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		SubmissionEnd:   time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	clock := func() time.Time { return fixtureNow }
	log := zerolog.Nop()
	lookups := memory.NewLookupCache(store, time.Hour)

	grading := app.NewGradingService(store, store, log, nil)
	grading.SetClock(clock)
	board := app.NewLeaderboardService(store, lookups, nil, nil, log)
	board.SetClock(clock)
	admin := app.NewAdminService(store, lookups, log, nil)
	admin.SetClock(clock)

	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		season:  season,
		lookups: lookups,
		grading: grading,
		board:   board,
		admin:   admin,
	}
}

func (f *fixture) user(name string) domain.User {
	f.t.Helper()
	u, err := f.store.AddUser(domain.User{Username: name, DisplayName: name})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) team(name, conference string) domain.Team {
	f.t.Helper()
	t, err := f.store.AddTeam(domain.Team{Name: name, Conference: conference})
	require.NoError(f.t, err)
	return t
}

func (f *fixture) player(name string) domain.Player {
	f.t.Helper()
	p, err := f.store.AddPlayer(domain.Player{Name: name})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) question(text string, points float64, correct string, v domain.QuestionVariant) domain.Question {
	f.t.Helper()
	q := domain.Question{SeasonID: f.season.ID, Text: text, PointValue: points, Variant: v}
	if correct != "" {
		q.CorrectAnswer = &correct
	}
	q, err := f.store.AddQuestion(q)
	require.NoError(f.t, err)
	return q
}

func (f *fixture) answer(u domain.User, q domain.Question, value string) domain.Answer {
	f.t.Helper()
	a, err := f.store.AddAnswer(domain.Answer{UserID: u.ID, QuestionID: q.ID, Value: value, SubmittedAt: fixtureNow})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) predict(u domain.User, t domain.Team, position int) domain.StandingPrediction {
	f.t.Helper()
	p, err := f.store.AddStandingPrediction(domain.StandingPrediction{
		UserID:            u.ID,
		SeasonID:          f.season.ID,
		TeamID:            t.ID,
		PredictedPosition: position,
	})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) grade(grader app.GraderName) app.RunSummary {
	f.t.Helper()
	summary, err := f.grading.Grade(f.ctx, app.GradeRequest{Season: f.season.Slug, Grader: grader})
	require.NoError(f.t, err)
	return summary
}

func (f *fixture) answerByID(id int64) domain.Answer {
	f.t.Helper()
	answers, err := f.store.Answers(f.ctx, f.season.ID)
	require.NoError(f.t, err)
	for _, a := range answers {
		if a.ID == id {
			return a
		}
	}
	f.t.Fatalf("answer %d not found", id)
	return domain.Answer{}
}

func (f *fixture) stats() map[int64]float64 {
	f.t.Helper()
	rows, err := f.store.UserStats(f.ctx, f.season.ID)
	require.NoError(f.t, err)
	out := make(map[int64]float64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Points
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
