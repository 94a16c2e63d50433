package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"season-predictions/internal/domain"
)

// LeaderboardService builds, caches and publishes season leaderboards.
type LeaderboardService struct {
	store   Store
	lookups LookupCache
	cache   LeaderboardCache
	feed    Publisher
	log     zerolog.Logger
	now     func() time.Time
}

// NewLeaderboardService wires the builder. cache and feed may be nil.
func NewLeaderboardService(store Store, lookups LookupCache, cache LeaderboardCache, feed Publisher, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		store:   store,
		lookups: lookups,
		cache:   cache,
		feed:    feed,
		log:     log,
		now:     time.Now,
	}
}

// SetClock is test-only for deterministic submission windows.
func (s *LeaderboardService) SetClock(now func() time.Time) {
	s.now = now
}

// Leaderboard returns the standings/awards/props leaderboard of a season.
func (s *LeaderboardService) Leaderboard(ctx context.Context, seasonRef string) (domain.Leaderboard, error) {
	return s.view(ctx, seasonRef, ViewMain)
}

// TournamentLeaderboard returns the in-season tournament leaderboard of a season.
func (s *LeaderboardService) TournamentLeaderboard(ctx context.Context, seasonRef string) (domain.Leaderboard, error) {
	return s.view(ctx, seasonRef, ViewTournament)
}

func (s *LeaderboardService) view(ctx context.Context, seasonRef, view string) (domain.Leaderboard, error) {
	season, err := ResolveSeason(ctx, s.store, seasonRef, s.now())
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if s.cache != nil {
		if lb, ok := s.cache.Get(ctx, season.Slug, view); ok {
			return lb, nil
		}
	}
	lb, err := s.build(ctx, season, view)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, season.Slug, view, lb)
	}
	return lb, nil
}

// Republish drops cached views of the season and pushes a fresh main
// leaderboard to live subscribers. Failures are logged, not returned.
func (s *LeaderboardService) Republish(ctx context.Context, season domain.Season) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, season.Slug)
	}
	if s.feed == nil {
		return
	}
	lb, err := s.build(ctx, season, ViewMain)
	if err != nil {
		s.log.Error().Err(err).Str("season", season.Slug).Msg("rebuild leaderboard after grading")
		return
	}
	if s.cache != nil {
		s.cache.Put(ctx, season.Slug, ViewMain, lb)
	}
	s.feed.Publish(season.Slug, lb)
}

// Audit rebuilds the main leaderboard without the snapshot cache and returns
// the entry of one user, for checking a grading run against stored answers.
func (s *LeaderboardService) Audit(ctx context.Context, seasonRef, username string) (domain.LeaderboardEntry, error) {
	season, err := ResolveSeason(ctx, s.store, seasonRef, s.now())
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	lb, err := s.build(ctx, season, ViewMain)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	for _, e := range lb.Entries {
		if e.Username == username {
			return e, nil
		}
	}
	return domain.LeaderboardEntry{}, fmt.Errorf("%w: %q has no predictions in %s", domain.ErrUserNotFound, username, season.Slug)
}

// boardData is everything a leaderboard build reads, loaded up front.
type boardData struct {
	season      domain.Season
	questions   map[int64]domain.Question
	answers     []domain.Answer
	predictions []domain.StandingPrediction
	standings   map[int64]domain.RegularSeasonStanding
	teams       map[int64]domain.Team
	users       map[int64]domain.User
	tables      LookupTables
	// totals holds UserStats.points per user; main view only.
	totals map[int64]float64
}

func (s *LeaderboardService) build(ctx context.Context, season domain.Season, view string) (domain.Leaderboard, error) {
	data, err := s.load(ctx, season, view == ViewMain)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	var entries []domain.LeaderboardEntry
	if view == ViewTournament {
		entries = buildTournamentEntries(data)
	} else {
		entries = buildMainEntries(data)
	}
	rankEntries(entries)
	Annotate(entries, QuestionRates(data.answers))

	return domain.Leaderboard{
		Entries: entries,
		Season: domain.SeasonInfo{
			Slug:              season.Slug,
			Year:              season.Year,
			SubmissionEndDate: season.SubmissionEnd,
			SubmissionsOpen:   season.SubmissionsOpen(s.now()),
		},
	}, nil
}

func (s *LeaderboardService) load(ctx context.Context, season domain.Season, withStandings bool) (*boardData, error) {
	data := &boardData{
		season:    season,
		standings: make(map[int64]domain.RegularSeasonStanding),
		teams:     make(map[int64]domain.Team),
		users:     make(map[int64]domain.User),
		totals:    make(map[int64]float64),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.questions, err = questionIndex(gctx, s.store, season.ID)
		return err
	})
	g.Go(func() error {
		var err error
		data.answers, err = s.store.Answers(gctx, season.ID)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data.tables, err = s.lookups.Tables(gctx)
		if err != nil {
			return fmt.Errorf("load lookup tables: %w", err)
		}
		return nil
	})
	if withStandings {
		g.Go(func() error {
			var err error
			data.predictions, err = s.store.StandingPredictions(gctx, season.ID)
			if err != nil {
				return fmt.Errorf("load standing predictions: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			rows, err := s.store.RegularSeasonStandings(gctx, season.ID)
			if err != nil {
				return fmt.Errorf("load regular season standings: %w", err)
			}
			for _, r := range rows {
				data.standings[r.TeamID] = r
			}
			return nil
		})
		g.Go(func() error {
			rows, err := s.store.UserStats(gctx, season.ID)
			if err != nil {
				return fmt.Errorf("load user stats: %w", err)
			}
			for _, r := range rows {
				data.totals[r.UserID] = r.Points
			}
			return nil
		})
		g.Go(func() error {
			teams, err := s.store.Teams(gctx)
			if err != nil {
				return fmt.Errorf("load teams: %w", err)
			}
			for _, t := range teams {
				data.teams[t.ID] = t
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{})
	for _, a := range data.answers {
		ids[a.UserID] = struct{}{}
	}
	for _, p := range data.predictions {
		ids[p.UserID] = struct{}{}
	}
	userIDs := make([]int64, 0, len(ids))
	for id := range ids {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	users, err := s.store.Users(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		data.users[u.ID] = u
	}
	return data, nil
}

// AnswerCategory places a non-tournament answer in its leaderboard category.
// ok is false for tournament answers, which have their own leaderboard.
func AnswerCategory(q domain.Question) (category string, ok bool) {
	switch q.Variant.(type) {
	case *domain.InSeasonTournamentQuestion:
		return "", false
	case *domain.SuperlativeQuestion:
		return domain.CategoryAwards, true
	default:
		return domain.CategoryProps, true
	}
}

// entryBuilder accumulates one user's record while a leaderboard is built.
type entryBuilder struct {
	entry   *domain.LeaderboardEntry
	points  map[string]decimal.Decimal
	max     map[string]decimal.Decimal
	known   int
	correct int
}

type entrySet struct {
	users    map[int64]domain.User
	builders map[int64]*entryBuilder
}

func newEntrySet(users map[int64]domain.User) *entrySet {
	return &entrySet{users: users, builders: make(map[int64]*entryBuilder)}
}

func (s *entrySet) get(userID int64) *entryBuilder {
	if b, ok := s.builders[userID]; ok {
		return b
	}
	u, ok := s.users[userID]
	if !ok {
		u = domain.User{ID: userID, Username: fmt.Sprintf("user-%d", userID)}
	}
	displayName := u.DisplayName
	if displayName == "" {
		displayName = u.Username
	}
	b := &entryBuilder{
		entry: &domain.LeaderboardEntry{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: displayName,
			Categories:  make(map[string]*domain.CategoryBreakdown),
			Badges:      []domain.Badge{},
			HardWins:    []domain.Insight{},
			EasyMisses:  []domain.Insight{},
		},
		points: make(map[string]decimal.Decimal),
		max:    make(map[string]decimal.Decimal),
	}
	s.builders[userID] = b
	return b
}

func (b *entryBuilder) add(category string, p domain.Prediction, maxPoints float64) {
	cat, ok := b.entry.Categories[category]
	if !ok {
		cat = &domain.CategoryBreakdown{Predictions: []domain.Prediction{}}
		b.entry.Categories[category] = cat
	}
	cat.Predictions = append(cat.Predictions, p)
	b.points[category] = b.points[category].Add(decimal.NewFromFloat(p.Points))
	b.max[category] = b.max[category].Add(decimal.NewFromFloat(maxPoints))
}

func (s *entrySet) finish() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(s.builders))
	for _, b := range s.builders {
		total := decimal.Zero
		for name, cat := range b.entry.Categories {
			cat.Points = b.points[name].InexactFloat64()
			cat.MaxPoints = b.max[name].InexactFloat64()
			total = total.Add(b.points[name])
		}
		b.entry.TotalPoints = total.InexactFloat64()
		if b.known > 0 {
			b.entry.Accuracy = int(math.Round(float64(b.correct) / float64(b.known) * 100))
		}
		entries = append(entries, *b.entry)
	}
	return entries
}

func buildMainEntries(data *boardData) []domain.LeaderboardEntry {
	set := newEntrySet(data.users)

	for _, p := range data.predictions {
		b := set.get(p.UserID)
		pred := domain.Prediction{
			TeamID:            p.TeamID,
			Team:              teamName(data, p.TeamID),
			PredictedPosition: p.PredictedPosition,
			Points:            float64(p.Points),
		}
		if t, ok := data.teams[p.TeamID]; ok {
			pred.Conference = t.Conference
		}
		if st, ok := data.standings[p.TeamID]; ok {
			actual := st.Position
			correct := p.Points == StandingsExactPoints
			pred.ActualPosition = &actual
			pred.Correct = &correct
			if st.Conference != "" {
				pred.Conference = st.Conference
			}
		}
		b.add(domain.CategoryStandings, pred, StandingsExactPoints)
	}

	answers := sortedAnswers(data.answers)
	for _, a := range answers {
		q, ok := data.questions[a.QuestionID]
		if !ok {
			continue
		}
		category, ok := AnswerCategory(q)
		if !ok {
			continue
		}
		b := set.get(a.UserID)
		b.add(category, answerPrediction(data.tables, q, a), q.PointValue)
		if a.IsCorrect != nil {
			b.known++
			if *a.IsCorrect {
				b.correct++
			}
		}
	}

	entries := set.finish()
	for i := range entries {
		if cat, ok := entries[i].Categories[domain.CategoryStandings]; ok {
			sortStandings(cat.Predictions)
		}
		// UserStats is the canonical total and also counts tournament points.
		// Users no run has reached yet keep the category sum.
		if total, ok := data.totals[entries[i].ID]; ok {
			entries[i].TotalPoints = total
		}
	}
	return entries
}

func buildTournamentEntries(data *boardData) []domain.LeaderboardEntry {
	set := newEntrySet(data.users)

	for _, a := range sortedAnswers(data.answers) {
		q, ok := data.questions[a.QuestionID]
		if !ok {
			continue
		}
		v, ok := q.Variant.(*domain.InSeasonTournamentQuestion)
		if !ok {
			continue
		}
		b := set.get(a.UserID)
		pred := answerPrediction(data.tables, q, a)
		pred.PredictionType = v.PredictionType
		pred.Group = v.Group
		maxPoints := q.PointValue
		if v.Tiebreaker() {
			pred.Correct = nil
			maxPoints = 0
		} else if a.IsCorrect != nil {
			b.known++
			if *a.IsCorrect {
				b.correct++
			}
		}
		b.add(domain.CategoryTournament, pred, maxPoints)
	}
	return set.finish()
}

func answerPrediction(tables LookupTables, q domain.Question, a domain.Answer) domain.Prediction {
	p := domain.Prediction{
		QuestionID: q.ID,
		Question:   q.Text,
		Answer:     tables.Resolve(a.Value, q),
		Correct:    a.IsCorrect,
		Points:     a.PointsEarned,
	}
	if q.HasCorrectAnswer() {
		p.CorrectAnswer = tables.Resolve(*q.CorrectAnswer, q)
	}
	return p
}

func teamName(data *boardData, teamID int64) string {
	if t, ok := data.teams[teamID]; ok && t.Name != "" {
		return t.Name
	}
	return data.tables.team(teamID)
}

func sortedAnswers(answers []domain.Answer) []domain.Answer {
	out := make([]domain.Answer, len(answers))
	copy(out, answers)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortStandings orders West before East, then by actual finish; unknown finishes last.
func sortStandings(preds []domain.Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		wi, wj := preds[i].Conference == domain.ConferenceWest, preds[j].Conference == domain.ConferenceWest
		if wi != wj {
			return wi
		}
		ai, aj := preds[i].ActualPosition, preds[j].ActualPosition
		switch {
		case ai == nil && aj == nil:
			return preds[i].PredictedPosition < preds[j].PredictedPosition
		case ai == nil:
			return false
		case aj == nil:
			return true
		default:
			return *ai < *aj
		}
	})
}

// rankEntries sorts by total points descending. Equal totals fall back to
// username so the order is deterministic across builds.
func rankEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].Username < entries[j].Username
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
