package app_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

func TestInferStage(t *testing.T) {
	assert.Equal(t, app.StageGroup, app.InferStage(nil))
	assert.Equal(t, app.StageGroup, app.InferStage([]domain.TournamentStanding{{Wins: 3, Losses: 1}, {Wins: 2, Losses: 2}}))
	assert.Equal(t, app.StageKnockout, app.InferStage([]domain.TournamentStanding{{Wins: 4, Losses: 0}, {Wins: 5, Losses: 0}}))
}

func TestTournamentOutcome(t *testing.T) {
	cases := []struct {
		name    string
		q       domain.InSeasonTournamentQuestion
		st      domain.TournamentStanding
		correct bool
		ok      bool
	}{
		{"group winner", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictGroupWinner}, domain.TournamentStanding{GroupRank: 1}, true, true},
		{"group winner wrong group", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictGroupWinner, Group: "East A"}, domain.TournamentStanding{Group: "West A", GroupRank: 1}, false, true},
		{"wildcard", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictWildcard}, domain.TournamentStanding{GroupRank: 2, WildcardRank: 1}, true, true},
		{"wildcard excludes group winners", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictWildcard}, domain.TournamentStanding{GroupRank: 1, WildcardRank: 1}, false, true},
		{"conference winner", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictConferenceWinner}, domain.TournamentStanding{KnockoutRank: 1}, true, true},
		{"champion", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictChampion}, domain.TournamentStanding{IsChampion: true}, true, true},
		{"tiebreaker not graded", domain.InSeasonTournamentQuestion{PredictionType: domain.PredictTiebreaker}, domain.TournamentStanding{}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			correct, ok := app.TournamentOutcome(&tc.q, tc.st)
			assert.Equal(t, tc.correct, correct)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

type tournamentFixture struct {
	*fixture
	alice    domain.User
	lakers   domain.Team
	bucks    domain.Team
	group    domain.Question
	champion domain.Question
	tiebreak domain.Question
}

func newTournamentFixture(t *testing.T, lakersWins int) *tournamentFixture {
	f := newFixture(t)
	tf := &tournamentFixture{fixture: f}
	tf.alice = f.user("alice")
	tf.lakers = f.team("Lakers", domain.ConferenceWest)
	tf.bucks = f.team("Bucks", domain.ConferenceEast)

	tf.group = f.question("West Group A winner?", 1, "", &domain.InSeasonTournamentQuestion{PredictionType: domain.PredictGroupWinner, Group: "West A"})
	tf.champion = f.question("Tournament champion?", 3, "", &domain.InSeasonTournamentQuestion{PredictionType: domain.PredictChampion})
	tf.tiebreak = f.question("Championship game total points?", 1, "", &domain.InSeasonTournamentQuestion{PredictionType: domain.PredictTiebreaker, IsTiebreaker: true})

	require.NoError(t, f.store.SetTournamentStandings(f.season.ID, []domain.TournamentStanding{
		{TeamID: tf.lakers.ID, Group: "West A", GroupRank: 1, Wins: lakersWins, IsChampion: lakersWins > app.GroupStageGames},
		{TeamID: tf.bucks.ID, Group: "East B", GroupRank: 1, Wins: 4},
	}))
	return tf
}

func (tf *tournamentFixture) id(team domain.Team) string {
	return strconv.FormatInt(team.ID, 10)
}

func TestTournamentGroupStageDefersKnockoutAnswers(t *testing.T) {
	tf := newTournamentFixture(t, 4)
	group := tf.answer(tf.alice, tf.group, tf.id(tf.lakers))
	champ := tf.answer(tf.alice, tf.champion, tf.id(tf.lakers))
	tf.answer(tf.alice, tf.tiebreak, "231")

	summary := tf.grade(app.GraderTournament)
	assert.False(t, summary.KnockoutActive)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.SkipReasons[app.SkipKnockoutNotStarted])
	assert.Equal(t, 1, summary.SkipReasons[app.SkipTiebreaker])

	got := tf.answerByID(group.ID)
	require.NotNil(t, got.IsCorrect)
	assert.True(t, *got.IsCorrect)
	assert.Equal(t, 1.0, got.PointsEarned)

	got = tf.answerByID(champ.ID)
	assert.Nil(t, got.IsCorrect, "knockout answers stay pending before the knockout stage")
	assert.Zero(t, got.PointsEarned)
}

func TestTournamentKnockoutInferredFromStandings(t *testing.T) {
	tf := newTournamentFixture(t, 7)
	champ := tf.answer(tf.alice, tf.champion, tf.id(tf.lakers))

	summary := tf.grade(app.GraderTournament)
	assert.True(t, summary.KnockoutActive)

	got := tf.answerByID(champ.ID)
	require.NotNil(t, got.IsCorrect)
	assert.True(t, *got.IsCorrect)
	assert.Equal(t, 3.0, got.PointsEarned)
	assert.Equal(t, 3.0, tf.stats()[tf.alice.ID])
}

func TestTournamentForceKnockout(t *testing.T) {
	tf := newTournamentFixture(t, 4)
	champ := tf.answer(tf.alice, tf.champion, tf.id(tf.bucks))

	summary, err := tf.grading.Grade(tf.ctx, app.GradeRequest{
		Season:        tf.season.Slug,
		Grader:        app.GraderTournament,
		ForceKnockout: true,
	})
	require.NoError(t, err)
	assert.True(t, summary.KnockoutActive)

	got := tf.answerByID(champ.ID)
	require.NotNil(t, got.IsCorrect)
	assert.False(t, *got.IsCorrect)
}

func TestTournamentMalformedAnswersAreSkipped(t *testing.T) {
	tf := newTournamentFixture(t, 4)
	bad := tf.answer(tf.alice, tf.group, "the lakers")
	bob := tf.user("bob")
	missing := tf.answer(bob, tf.group, "9999")

	summary := tf.grade(app.GraderTournament)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.SkipReasons[app.SkipMalformedAnswer])
	assert.Equal(t, 1, summary.SkipReasons[app.SkipStandingsUnavailable])
	assert.Nil(t, tf.answerByID(bad.ID).IsCorrect)
	assert.Nil(t, tf.answerByID(missing.ID).IsCorrect)
}

func TestSkippedAnswersAreLoggedPerRecord(t *testing.T) {
	tf := newTournamentFixture(t, 4)
	champ := tf.answer(tf.alice, tf.champion, tf.id(tf.lakers))
	tie := tf.answer(tf.alice, tf.tiebreak, "231")
	prop := tf.question("Over 45.5 wins?", 1, "", &domain.PropQuestion{OutcomeType: domain.OutcomeOverUnder})
	pending := tf.answer(tf.alice, prop, "over")

	var buf bytes.Buffer
	grading := app.NewGradingService(tf.store, tf.store, zerolog.New(&buf), nil)
	_, err := grading.Grade(tf.ctx, app.GradeRequest{Season: tf.season.Slug, Grader: app.GraderAll})
	require.NoError(t, err)

	logged := map[string][]int64{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var line struct {
			Reason   string `json:"reason"`
			AnswerID int64  `json:"answer_id"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line.Reason != "" && line.AnswerID != 0 {
			logged[line.Reason] = append(logged[line.Reason], line.AnswerID)
		}
	}
	assert.Equal(t, []int64{champ.ID}, logged[app.SkipKnockoutNotStarted])
	assert.Equal(t, []int64{tie.ID}, logged[app.SkipTiebreaker])
	assert.Equal(t, []int64{pending.ID}, logged[app.SkipNoCorrectAnswer])
}
