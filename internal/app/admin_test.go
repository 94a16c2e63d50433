package app_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

func TestUpdateFromLatestOdds(t *testing.T) {
	f := newFixture(t)
	award, err := f.store.AddAward(domain.Award{Name: "MVP"})
	require.NoError(t, err)
	scraped := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.AddOdds(
		domain.OddsEntry{AwardID: award.ID, PlayerName: "Nikola Jokic", Odds: "+120", Rank: 2, ScrapedAt: scraped},
		domain.OddsEntry{AwardID: award.ID, PlayerName: "Shai Gilgeous-Alexander", Odds: "-110", Rank: 1, ScrapedAt: scraped},
	))
	q := f.question("MVP?", 1, "", &domain.SuperlativeQuestion{AwardID: award.ID})

	got, err := f.admin.UpdateFromLatestOdds(f.ctx, q.ID)
	require.NoError(t, err)
	v := got.Variant.(*domain.SuperlativeQuestion)
	assert.Equal(t, "Shai Gilgeous-Alexander", v.CurrentLeader)
	assert.Equal(t, "-110", v.CurrentLeaderOdds)
	assert.Equal(t, "Nikola Jokic", v.CurrentRunnerUp)
	require.NotNil(t, got.CorrectAnswer)
	assert.Equal(t, "Shai Gilgeous-Alexander", *got.CorrectAnswer)
	assert.Equal(t, fixtureNow, got.LastUpdated)

	stored, err := f.store.Question(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shai Gilgeous-Alexander", *stored.CorrectAnswer)
}

func TestUpdateFromLatestOddsKeepsFinalizedAnswer(t *testing.T) {
	f := newFixture(t)
	award, err := f.store.AddAward(domain.Award{Name: "MVP"})
	require.NoError(t, err)
	require.NoError(t, f.store.AddOdds(domain.OddsEntry{AwardID: award.ID, PlayerName: "Luka Doncic", Odds: "+300", Rank: 1, ScrapedAt: fixtureNow}))
	q := f.question("MVP?", 1, "Nikola Jokic", &domain.SuperlativeQuestion{AwardID: award.ID, IsFinalized: true})

	got, err := f.admin.UpdateFromLatestOdds(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Luka Doncic", got.Variant.(*domain.SuperlativeQuestion).CurrentLeader)
	assert.Equal(t, "Nikola Jokic", *got.CorrectAnswer)
}

func TestUpdateFromLatestOddsErrors(t *testing.T) {
	f := newFixture(t)
	orphan := f.question("MVP?", 1, "", &domain.SuperlativeQuestion{AwardID: 404})
	_, err := f.admin.UpdateFromLatestOdds(f.ctx, orphan.ID)
	require.ErrorIs(t, err, domain.ErrAwardNotFound)

	prop := f.question("Over?", 1, "", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	_, err = f.admin.UpdateFromLatestOdds(f.ctx, prop.ID)
	require.ErrorIs(t, err, domain.ErrNotSuperlative)

	_, err = f.admin.UpdateFromLatestOdds(f.ctx, 12345)
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestFinalizeWinnersIsIdempotent(t *testing.T) {
	f := newFixture(t)
	jokic := f.player("Nikola Jokic")
	q := f.question("MVP?", 1, "", &domain.SuperlativeQuestion{AwardID: 1})

	for i := 0; i < 2; i++ {
		got, err := f.admin.FinalizeWinners(f.ctx, q.ID, "nikola jokic")
		require.NoError(t, err)
		v := got.Variant.(*domain.SuperlativeQuestion)
		assert.True(t, v.IsFinalized)
		assert.Equal(t, []int64{jokic.ID}, v.WinnerIDs)
	}

	alice := f.user("alice")
	a := f.answer(alice, q, strconv.FormatInt(jokic.ID, 10))
	f.grade(app.GraderAnswers)
	got := f.answerByID(a.ID)
	require.NotNil(t, got.IsCorrect)
	assert.True(t, *got.IsCorrect)
}

func TestFinalizeWinnersUnknownPlayer(t *testing.T) {
	f := newFixture(t)
	q := f.question("ROY?", 1, "", &domain.SuperlativeQuestion{AwardID: 1})

	got, err := f.admin.FinalizeWinners(f.ctx, q.ID, "Someone New")
	require.NoError(t, err)
	assert.Equal(t, "Someone New", *got.CorrectAnswer)
	assert.Empty(t, got.Variant.(*domain.SuperlativeQuestion).WinnerIDs)

	_, err = f.admin.FinalizeWinners(f.ctx, q.ID, "  ")
	require.Error(t, err)
}

func TestSetCorrectAnswerAppliesOnNextRun(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	q := f.question("Over 45.5?", 1, "", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	a := f.answer(alice, q, "Over")

	got, err := f.admin.SetCorrectAnswer(f.ctx, q.ID, "over")
	require.NoError(t, err)
	assert.True(t, got.IsManual)
	assert.Nil(t, f.answerByID(a.ID).IsCorrect, "setting the key does not grade by itself")

	f.grade(app.GraderAnswers)
	assert.True(t, *f.answerByID(a.ID).IsCorrect)

	got, err = f.admin.SetCorrectAnswer(f.ctx, q.ID, "")
	require.NoError(t, err)
	assert.False(t, got.HasCorrectAnswer())
}

func TestSetCorrectAnswerLeavesSuperlativeUnfinalized(t *testing.T) {
	f := newFixture(t)
	f.player("Nikola Jokic")
	q := f.question("MVP?", 1, "", &domain.SuperlativeQuestion{AwardID: 1})

	got, err := f.admin.SetCorrectAnswer(f.ctx, q.ID, "Nikola Jokic")
	require.NoError(t, err)
	require.True(t, got.HasCorrectAnswer())
	assert.Equal(t, "Nikola Jokic", *got.CorrectAnswer)
	v := got.Variant.(*domain.SuperlativeQuestion)
	assert.False(t, v.IsFinalized)
	assert.Empty(t, v.WinnerIDs)

	got, err = f.admin.SetCorrectAnswer(f.ctx, q.ID, "")
	require.NoError(t, err)
	assert.False(t, got.HasCorrectAnswer())
	assert.False(t, got.Variant.(*domain.SuperlativeQuestion).IsFinalized, "clearing a pending key never finalizes")
}

func TestSetCorrectAnswerKeepsFinalizedWinners(t *testing.T) {
	f := newFixture(t)
	jokic := f.player("Nikola Jokic")
	q := f.question("MVP?", 1, "", &domain.SuperlativeQuestion{AwardID: 1})
	_, err := f.admin.FinalizeWinners(f.ctx, q.ID, "Nikola Jokic")
	require.NoError(t, err)

	got, err := f.admin.SetCorrectAnswer(f.ctx, q.ID, "Shai Gilgeous-Alexander")
	require.NoError(t, err)
	assert.Equal(t, "Shai Gilgeous-Alexander", *got.CorrectAnswer)
	v := got.Variant.(*domain.SuperlativeQuestion)
	assert.True(t, v.IsFinalized, "finalization is owned by FinalizeWinners")
	assert.Equal(t, []int64{jokic.ID}, v.WinnerIDs)
}

func TestRefreshLookups(t *testing.T) {
	f := newFixture(t)
	_, err := f.lookups.Tables(f.ctx)
	require.NoError(t, err)

	p := f.player("Victor Wembanyama")
	tables, err := f.admin.RefreshLookups(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "Victor Wembanyama", tables.Players[p.ID])
}
