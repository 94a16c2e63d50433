package app_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
	"season-predictions/internal/infra/memory"
)

func TestLeaderboardTotalsAndRank(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	lakers := f.team("Lakers", domain.ConferenceWest)

	for i := 0; i < 3; i++ {
		q := f.question("Prop "+strconv.Itoa(i), 1, "yes", &domain.PropQuestion{OutcomeType: domain.OutcomeYesNo})
		f.answer(alice, q, "yes")
		f.answer(bob, q, "no")
	}
	f.predict(alice, lakers, 1)
	require.NoError(t, f.store.SetRegularSeasonStandings(f.season.ID, []domain.RegularSeasonStanding{
		{TeamID: lakers.ID, Conference: domain.ConferenceWest, Position: 1},
	}))
	f.grade(app.GraderAll)

	lb, err := f.board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 2)

	first, second := lb.Entries[0], lb.Entries[1]
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, 6.0, first.TotalPoints)
	assert.Equal(t, 100, first.Accuracy)
	assert.Equal(t, "bob", second.Username)
	assert.Equal(t, 2, second.Rank)
	assert.Equal(t, 0.0, second.TotalPoints)
	assert.Equal(t, 0, second.Accuracy)

	props := first.Categories[domain.CategoryProps]
	require.NotNil(t, props)
	assert.Equal(t, 3.0, props.Points)
	assert.Equal(t, 3.0, props.MaxPoints)
	assert.Len(t, props.Predictions, 3)

	standings := first.Categories[domain.CategoryStandings]
	require.NotNil(t, standings)
	assert.Equal(t, 3.0, standings.Points)
	assert.Equal(t, 3.0, standings.MaxPoints)

	assert.Equal(t, f.season.Slug, lb.Season.Slug)
	assert.False(t, lb.Season.SubmissionsOpen)
	assert.Equal(t, f.season.SubmissionEnd, lb.Season.SubmissionEndDate)
}

func TestLeaderboardCategorization(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	jokic := f.player("Nikola Jokic")
	lakers := f.team("Lakers", domain.ConferenceWest)

	mvp := f.question("MVP?", 1, "Nikola Jokic", &domain.SuperlativeQuestion{AwardID: 1})
	h2h := f.question("Lakers or Warriors?", 1, "", &domain.HeadToHeadQuestion{Team1ID: lakers.ID})
	ist := f.question("Champion?", 1, "", &domain.InSeasonTournamentQuestion{PredictionType: domain.PredictChampion, Group: "West A"})
	f.answer(alice, mvp, strconv.FormatInt(jokic.ID, 10))
	f.answer(alice, h2h, strconv.FormatInt(lakers.ID, 10))
	f.answer(alice, ist, strconv.FormatInt(lakers.ID, 10))
	f.grade(app.GraderAll)

	lb, err := f.board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	cats := lb.Entries[0].Categories

	require.Contains(t, cats, domain.CategoryAwards)
	award := cats[domain.CategoryAwards].Predictions[0]
	assert.Equal(t, "Nikola Jokic", award.Answer)
	assert.Equal(t, "Nikola Jokic", award.CorrectAnswer)
	require.NotNil(t, award.Correct)
	assert.True(t, *award.Correct)

	require.Contains(t, cats, domain.CategoryProps)
	assert.Equal(t, "Lakers", cats[domain.CategoryProps].Predictions[0].Answer)
	assert.NotContains(t, cats, domain.CategoryTournament)

	tour, err := f.board.TournamentLeaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	require.Len(t, tour.Entries, 1)
	require.Contains(t, tour.Entries[0].Categories, domain.CategoryTournament)
	assert.Len(t, tour.Entries[0].Categories, 1)
	pred := tour.Entries[0].Categories[domain.CategoryTournament].Predictions[0]
	assert.Equal(t, domain.PredictChampion, pred.PredictionType)
	assert.Equal(t, "West A", pred.Group)
	assert.Equal(t, "Lakers", pred.Answer)
}

func TestLeaderboardTotalComesFromUserStats(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	lakers := f.team("Lakers", domain.ConferenceWest)

	prop := f.question("Over 45.5 wins?", 1, "over", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	group := f.question("West Group A winner?", 2, "", &domain.InSeasonTournamentQuestion{PredictionType: domain.PredictGroupWinner, Group: "West A"})
	f.answer(alice, prop, "over")
	f.answer(alice, group, strconv.FormatInt(lakers.ID, 10))
	require.NoError(t, f.store.SetTournamentStandings(f.season.ID, []domain.TournamentStanding{
		{TeamID: lakers.ID, Group: "West A", GroupRank: 1, Wins: 4},
	}))
	f.grade(app.GraderAll)
	// bob answers after the run, so he has no stats row yet
	f.answer(bob, prop, "under")

	lb, err := f.board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 2)
	first := lb.Entries[0]
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, 3.0, first.TotalPoints, "tournament points count toward the season total")
	assert.Equal(t, f.stats()[alice.ID], first.TotalPoints)
	assert.Equal(t, 1.0, first.Categories[domain.CategoryProps].Points)
	assert.NotContains(t, first.Categories, domain.CategoryTournament)
	assert.Equal(t, "bob", lb.Entries[1].Username)
	assert.Equal(t, 0.0, lb.Entries[1].TotalPoints)

	tour, err := f.board.TournamentLeaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	require.Len(t, tour.Entries, 1)
	assert.Equal(t, 2.0, tour.Entries[0].TotalPoints)
}

func TestLeaderboardStandingsOrder(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	celtics := f.team("Celtics", domain.ConferenceEast)
	suns := f.team("Suns", domain.ConferenceWest)
	nuggets := f.team("Nuggets", domain.ConferenceWest)
	jazz := f.team("Jazz", domain.ConferenceWest)

	f.predict(alice, celtics, 1)
	f.predict(alice, jazz, 15)
	f.predict(alice, suns, 4)
	f.predict(alice, nuggets, 2)
	require.NoError(t, f.store.SetRegularSeasonStandings(f.season.ID, []domain.RegularSeasonStanding{
		{TeamID: celtics.ID, Conference: domain.ConferenceEast, Position: 1},
		{TeamID: suns.ID, Conference: domain.ConferenceWest, Position: 3},
		{TeamID: nuggets.ID, Conference: domain.ConferenceWest, Position: 2},
	}))
	f.grade(app.GraderStandings)

	lb, err := f.board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	preds := lb.Entries[0].Categories[domain.CategoryStandings].Predictions

	var order []string
	for _, p := range preds {
		order = append(order, p.Team)
	}
	assert.Equal(t, []string{"Nuggets", "Suns", "Jazz", "Celtics"}, order)
	assert.Nil(t, preds[2].ActualPosition)
	assert.Equal(t, 12.0, lb.Entries[0].Categories[domain.CategoryStandings].MaxPoints)
}

func TestLeaderboardTiesBreakByUsername(t *testing.T) {
	f := newFixture(t)
	q := f.question("Over 45.5?", 1, "over", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	for _, name := range []string{"zed", "amy", "mia"} {
		f.answer(f.user(name), q, "over")
	}
	f.grade(app.GraderAnswers)

	lb, err := f.board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 3)
	for i, want := range []string{"amy", "mia", "zed"} {
		assert.Equal(t, want, lb.Entries[i].Username)
		assert.Equal(t, i+1, lb.Entries[i].Rank)
	}
}

func TestLeaderboardUnknownSeason(t *testing.T) {
	f := newFixture(t)
	_, err := f.board.Leaderboard(f.ctx, "1999-00")
	require.ErrorIs(t, err, domain.ErrSeasonNotFound)
}

func TestLeaderboardCacheAndRepublish(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	q := f.question("Over 45.5?", 1, "over", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	f.answer(alice, q, "over")

	cache := memory.NewLeaderboardCache(time.Minute)
	feed := app.NewFeed()
	board := app.NewLeaderboardService(f.store, f.lookups, cache, feed, zerolog.Nop())
	f.grading.OnCommitted(board.Republish)

	before, err := board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	assert.Equal(t, 0.0, before.Entries[0].TotalPoints)

	updates, cancel := feed.Subscribe(f.season.Slug)
	defer cancel()

	f.grade(app.GraderAnswers)

	select {
	case lb := <-updates:
		assert.Equal(t, 1.0, lb.Entries[0].TotalPoints)
	case <-time.After(time.Second):
		t.Fatal("expected a leaderboard update after grading")
	}

	after, err := board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1.0, after.Entries[0].TotalPoints, "grading must invalidate the cached view")
}

func TestAuditBypassesCache(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	q := f.question("Over 45.5?", 1, "over", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	f.answer(alice, q, "over")

	cache := memory.NewLeaderboardCache(time.Hour)
	board := app.NewLeaderboardService(f.store, f.lookups, cache, nil, zerolog.Nop())
	stale, err := board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stale.Entries[0].TotalPoints)

	f.grade(app.GraderAnswers)

	cached, err := board.Leaderboard(f.ctx, f.season.Slug)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cached.Entries[0].TotalPoints)

	entry, err := board.Audit(f.ctx, f.season.Slug, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1.0, entry.TotalPoints)

	_, err = board.Audit(f.ctx, f.season.Slug, "nobody")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}
