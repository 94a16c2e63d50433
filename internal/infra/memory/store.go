package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

// ErrConstraint is returned when a write would break a uniqueness or foreign-key rule.
var ErrConstraint = errors.New("constraint violation")

// Store is an in-memory app.Store. Transactions work on a private copy of the
// dataset that replaces the committed one only when the callback succeeds.
type Store struct {
	txMu sync.Mutex // one transaction at a time

	mu     sync.RWMutex
	data   *dataset
	writes int
	fail   error
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: newDataset()}
}

// FailWrites makes every write inside later transactions return err. Pass nil to reset.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Writes reports the number of committed write calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := s.data.clone()
	tx.fail = s.fail
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.writes += tx.writes
	tx.writes, tx.fail = 0, nil
	s.data = tx
	s.mu.Unlock()
	return nil
}

// seed applies fn to a copy of the committed data and swaps it in.
func (s *Store) seed(fn func(d *dataset) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.RLock()
	next := s.data.clone()
	s.mu.RUnlock()
	if err := fn(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
	return nil
}

func (s *Store) current() *dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) SeasonBySlug(ctx context.Context, slug string) (domain.Season, error) {
	return s.current().SeasonBySlug(ctx, slug)
}

func (s *Store) LatestSeason(ctx context.Context, now time.Time) (domain.Season, error) {
	return s.current().LatestSeason(ctx, now)
}

func (s *Store) Question(ctx context.Context, id int64) (domain.Question, error) {
	return s.current().Question(ctx, id)
}

func (s *Store) Questions(ctx context.Context, seasonID int64) ([]domain.Question, error) {
	return s.current().Questions(ctx, seasonID)
}

func (s *Store) Answers(ctx context.Context, seasonID int64) ([]domain.Answer, error) {
	return s.current().Answers(ctx, seasonID)
}

func (s *Store) StandingPredictions(ctx context.Context, seasonID int64) ([]domain.StandingPrediction, error) {
	return s.current().StandingPredictions(ctx, seasonID)
}

func (s *Store) RegularSeasonStandings(ctx context.Context, seasonID int64) ([]domain.RegularSeasonStanding, error) {
	return s.current().RegularSeasonStandings(ctx, seasonID)
}

func (s *Store) TournamentStandings(ctx context.Context, seasonID int64) ([]domain.TournamentStanding, error) {
	return s.current().TournamentStandings(ctx, seasonID)
}

func (s *Store) UserStats(ctx context.Context, seasonID int64) ([]domain.UserStats, error) {
	return s.current().UserStats(ctx, seasonID)
}

func (s *Store) Users(ctx context.Context, ids []int64) ([]domain.User, error) {
	return s.current().Users(ctx, ids)
}

func (s *Store) Teams(ctx context.Context) ([]domain.Team, error) {
	return s.current().Teams(ctx)
}

func (s *Store) Award(ctx context.Context, id int64) (domain.Award, error) {
	return s.current().Award(ctx, id)
}

func (s *Store) LatestOdds(ctx context.Context, awardID int64) ([]domain.OddsEntry, error) {
	return s.current().LatestOdds(ctx, awardID)
}

func (s *Store) PlayerByName(ctx context.Context, name string) (domain.Player, bool, error) {
	return s.current().PlayerByName(ctx, name)
}

// LoadPlayers makes the store usable as an app.CatalogLoader.
func (s *Store) LoadPlayers(_ context.Context) ([]domain.Player, error) {
	d := s.current()
	out := make([]domain.Player, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LoadTeams(ctx context.Context) ([]domain.Team, error) {
	return s.current().Teams(ctx)
}

// dataset is one consistent version of every table. Committed datasets are never mutated.
type dataset struct {
	seasons     map[int64]domain.Season
	users       map[int64]domain.User
	players     map[int64]domain.Player
	teams       map[int64]domain.Team
	awards      map[int64]domain.Award
	odds        []domain.OddsEntry
	questions   map[int64]domain.Question
	answers     map[int64]domain.Answer
	predictions map[int64]domain.StandingPrediction
	regular     map[int64][]domain.RegularSeasonStanding
	tournament  map[int64][]domain.TournamentStanding
	stats       map[statsKey]domain.UserStats

	nextID int64
	writes int
	fail   error
}

type statsKey struct {
	userID, seasonID int64
}

func newDataset() *dataset {
	return &dataset{
		seasons:     make(map[int64]domain.Season),
		users:       make(map[int64]domain.User),
		players:     make(map[int64]domain.Player),
		teams:       make(map[int64]domain.Team),
		awards:      make(map[int64]domain.Award),
		questions:   make(map[int64]domain.Question),
		answers:     make(map[int64]domain.Answer),
		predictions: make(map[int64]domain.StandingPrediction),
		regular:     make(map[int64][]domain.RegularSeasonStanding),
		tournament:  make(map[int64][]domain.TournamentStanding),
		stats:       make(map[statsKey]domain.UserStats),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	copyMap(c.seasons, d.seasons)
	copyMap(c.users, d.users)
	copyMap(c.players, d.players)
	copyMap(c.teams, d.teams)
	copyMap(c.awards, d.awards)
	copyMap(c.answers, d.answers)
	copyMap(c.predictions, d.predictions)
	copyMap(c.stats, d.stats)
	c.odds = append([]domain.OddsEntry(nil), d.odds...)
	for id, q := range d.questions {
		c.questions[id] = cloneQuestion(q)
	}
	for id, rows := range d.regular {
		c.regular[id] = append([]domain.RegularSeasonStanding(nil), rows...)
	}
	for id, rows := range d.tournament {
		c.tournament[id] = append([]domain.TournamentStanding(nil), rows...)
	}
	c.nextID = d.nextID
	return c
}

func copyMap[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

// cloneQuestion copies the variant so edits inside a transaction stay private.
func cloneQuestion(q domain.Question) domain.Question {
	if q.CorrectAnswer != nil {
		v := *q.CorrectAnswer
		q.CorrectAnswer = &v
	}
	switch v := q.Variant.(type) {
	case *domain.SuperlativeQuestion:
		c := *v
		c.WinnerIDs = append([]int64(nil), v.WinnerIDs...)
		q.Variant = &c
	case *domain.PropQuestion:
		c := *v
		q.Variant = &c
	case *domain.PlayerStatPredictionQuestion:
		c := *v
		q.Variant = &c
	case *domain.HeadToHeadQuestion:
		c := *v
		q.Variant = &c
	case *domain.InSeasonTournamentQuestion:
		c := *v
		q.Variant = &c
	case *domain.NBAFinalsPredictionQuestion:
		c := *v
		q.Variant = &c
	}
	return q
}

func (d *dataset) id(given int64) int64 {
	if given != 0 {
		if given > d.nextID {
			d.nextID = given
		}
		return given
	}
	d.nextID++
	return d.nextID
}

func (d *dataset) SeasonBySlug(_ context.Context, slug string) (domain.Season, error) {
	for _, s := range d.seasons {
		if s.Slug == slug {
			return s, nil
		}
	}
	return domain.Season{}, fmt.Errorf("%w: %q", domain.ErrSeasonNotFound, slug)
}

func (d *dataset) LatestSeason(_ context.Context, now time.Time) (domain.Season, error) {
	var (
		latest domain.Season
		found  bool
	)
	for _, s := range d.seasons {
		if s.SubmissionStart.After(now) {
			continue
		}
		if !found || s.SubmissionStart.After(latest.SubmissionStart) {
			latest, found = s, true
		}
	}
	if !found {
		return domain.Season{}, fmt.Errorf("%w: no season started before %s", domain.ErrSeasonNotFound, now.Format(time.RFC3339))
	}
	return latest, nil
}

func (d *dataset) Question(_ context.Context, id int64) (domain.Question, error) {
	q, ok := d.questions[id]
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, id)
	}
	return cloneQuestion(q), nil
}

func (d *dataset) Questions(_ context.Context, seasonID int64) ([]domain.Question, error) {
	out := make([]domain.Question, 0)
	for _, q := range d.questions {
		if q.SeasonID == seasonID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *dataset) Answers(_ context.Context, seasonID int64) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0)
	for _, a := range d.answers {
		if q, ok := d.questions[a.QuestionID]; ok && q.SeasonID == seasonID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *dataset) StandingPredictions(_ context.Context, seasonID int64) ([]domain.StandingPrediction, error) {
	out := make([]domain.StandingPrediction, 0)
	for _, p := range d.predictions {
		if p.SeasonID == seasonID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *dataset) RegularSeasonStandings(_ context.Context, seasonID int64) ([]domain.RegularSeasonStanding, error) {
	return append([]domain.RegularSeasonStanding(nil), d.regular[seasonID]...), nil
}

func (d *dataset) TournamentStandings(_ context.Context, seasonID int64) ([]domain.TournamentStanding, error) {
	return append([]domain.TournamentStanding(nil), d.tournament[seasonID]...), nil
}

func (d *dataset) UserStats(_ context.Context, seasonID int64) ([]domain.UserStats, error) {
	out := make([]domain.UserStats, 0)
	for k, s := range d.stats {
		if k.seasonID == seasonID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (d *dataset) Users(_ context.Context, ids []int64) ([]domain.User, error) {
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *dataset) Teams(_ context.Context) ([]domain.Team, error) {
	out := make([]domain.Team, 0, len(d.teams))
	for _, t := range d.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *dataset) Award(_ context.Context, id int64) (domain.Award, error) {
	a, ok := d.awards[id]
	if !ok {
		return domain.Award{}, fmt.Errorf("%w: %d", domain.ErrAwardNotFound, id)
	}
	return a, nil
}

// LatestOdds returns the most recent snapshot of an award ordered by rank.
func (d *dataset) LatestOdds(_ context.Context, awardID int64) ([]domain.OddsEntry, error) {
	var latest time.Time
	for _, o := range d.odds {
		if o.AwardID == awardID && o.ScrapedAt.After(latest) {
			latest = o.ScrapedAt
		}
	}
	out := make([]domain.OddsEntry, 0)
	for _, o := range d.odds {
		if o.AwardID == awardID && o.ScrapedAt.Equal(latest) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (d *dataset) PlayerByName(_ context.Context, name string) (domain.Player, bool, error) {
	name = strings.TrimSpace(name)
	for _, p := range d.players {
		if strings.EqualFold(p.Name, name) {
			return p, true, nil
		}
	}
	return domain.Player{}, false, nil
}

func (d *dataset) write() error {
	if d.fail != nil {
		return d.fail
	}
	d.writes++
	return nil
}

func (d *dataset) UpdateAnswerGrades(_ context.Context, answers []domain.Answer) error {
	if err := d.write(); err != nil {
		return err
	}
	for _, a := range answers {
		cur, ok := d.answers[a.ID]
		if !ok {
			return fmt.Errorf("%w: answer %d does not exist", ErrConstraint, a.ID)
		}
		cur.PointsEarned = a.PointsEarned
		cur.IsCorrect = a.IsCorrect
		d.answers[a.ID] = cur
	}
	return nil
}

func (d *dataset) UpdateStandingPoints(_ context.Context, predictions []domain.StandingPrediction) error {
	if err := d.write(); err != nil {
		return err
	}
	for _, p := range predictions {
		cur, ok := d.predictions[p.ID]
		if !ok {
			return fmt.Errorf("%w: standing prediction %d does not exist", ErrConstraint, p.ID)
		}
		cur.Points = p.Points
		d.predictions[p.ID] = cur
	}
	return nil
}

func (d *dataset) ReplaceUserStats(_ context.Context, seasonID int64, stats []domain.UserStats) error {
	if err := d.write(); err != nil {
		return err
	}
	for k, s := range d.stats {
		if k.seasonID == seasonID {
			s.Points = 0
			d.stats[k] = s
		}
	}
	for _, s := range stats {
		if s.SeasonID != seasonID {
			return fmt.Errorf("%w: user stats for season %d written under season %d", ErrConstraint, s.SeasonID, seasonID)
		}
		d.stats[statsKey{s.UserID, seasonID}] = s
	}
	return nil
}

func (d *dataset) SaveQuestion(_ context.Context, q domain.Question) error {
	if err := d.write(); err != nil {
		return err
	}
	if _, ok := d.questions[q.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, q.ID)
	}
	if err := q.Validate(); err != nil {
		return err
	}
	d.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (d *dataset) AddSuperlativeWinner(_ context.Context, questionID, playerID int64) error {
	if err := d.write(); err != nil {
		return err
	}
	q, ok := d.questions[questionID]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionID)
	}
	v, ok := q.Variant.(*domain.SuperlativeQuestion)
	if !ok {
		return fmt.Errorf("%w: question %d", domain.ErrNotSuperlative, questionID)
	}
	if _, ok := d.players[playerID]; !ok {
		return fmt.Errorf("%w: player %d does not exist", ErrConstraint, playerID)
	}
	for _, id := range v.WinnerIDs {
		if id == playerID {
			return nil
		}
	}
	v.WinnerIDs = append(v.WinnerIDs, playerID)
	return nil
}
