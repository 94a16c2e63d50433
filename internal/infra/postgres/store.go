package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

// Open connects bun to Postgres through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store is the Postgres app.Store. Writes are only reachable through InTx.
type Store struct {
	reader
	db        *bun.DB
	batchSize int
}

var _ app.Store = (*Store)(nil)

func NewStore(db *bun.DB, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = app.DefaultBatchSize
	}
	return &Store{reader: reader{db: db}, db: db, batchSize: batchSize}
}

// InTx runs fn in one database transaction; any error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx app.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txStore{reader: reader{db: tx}, batchSize: s.batchSize})
	})
}

type reader struct {
	db bun.IDB
}

func (r reader) SeasonBySlug(ctx context.Context, slug string) (domain.Season, error) {
	var m seasonModel
	err := r.db.NewSelect().Model(&m).Where("s.slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Season{}, fmt.Errorf("%w: %q", domain.ErrSeasonNotFound, slug)
	}
	if err != nil {
		return domain.Season{}, fmt.Errorf("select season %q: %w", slug, err)
	}
	return m.toDomain(), nil
}

func (r reader) LatestSeason(ctx context.Context, now time.Time) (domain.Season, error) {
	var m seasonModel
	err := r.db.NewSelect().Model(&m).
		Where("s.submission_start_date <= ?", now).
		Order("s.submission_start_date DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Season{}, fmt.Errorf("%w: no season started before %s", domain.ErrSeasonNotFound, now.Format(time.RFC3339))
	}
	if err != nil {
		return domain.Season{}, fmt.Errorf("select latest season: %w", err)
	}
	return m.toDomain(), nil
}

func (r reader) Question(ctx context.Context, id int64) (domain.Question, error) {
	var m questionModel
	err := r.db.NewSelect().Model(&m).Where("q.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, id)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("select question %d: %w", id, err)
	}
	winners, err := r.winners(ctx, []int64{id})
	if err != nil {
		return domain.Question{}, err
	}
	return m.toDomain(winners[id])
}

func (r reader) Questions(ctx context.Context, seasonID int64) ([]domain.Question, error) {
	var rows []questionModel
	err := r.db.NewSelect().Model(&rows).Where("q.season_id = ?", seasonID).Order("q.id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	var superlatives []int64
	for _, m := range rows {
		if m.Kind == string(domain.KindSuperlative) {
			superlatives = append(superlatives, m.ID)
		}
	}
	winners, err := r.winners(ctx, superlatives)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(rows))
	for _, m := range rows {
		q, err := m.toDomain(winners[m.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (r reader) winners(ctx context.Context, questionIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	if len(questionIDs) == 0 {
		return out, nil
	}
	var rows []winnerModel
	err := r.db.NewSelect().Model(&rows).
		Where("w.question_id IN (?)", bun.In(questionIDs)).
		Order("w.question_id", "w.player_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select superlative winners: %w", err)
	}
	for _, w := range rows {
		out[w.QuestionID] = append(out[w.QuestionID], w.PlayerID)
	}
	return out, nil
}

func (r reader) Answers(ctx context.Context, seasonID int64) ([]domain.Answer, error) {
	var rows []answerModel
	err := r.db.NewSelect().Model(&rows).
		Join("JOIN questions AS q ON q.id = a.question_id").
		Where("q.season_id = ?", seasonID).
		Order("a.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select answers: %w", err)
	}
	out := make([]domain.Answer, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (r reader) StandingPredictions(ctx context.Context, seasonID int64) ([]domain.StandingPrediction, error) {
	var rows []standingPredictionModel
	err := r.db.NewSelect().Model(&rows).Where("sp.season_id = ?", seasonID).Order("sp.id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select standing predictions: %w", err)
	}
	out := make([]domain.StandingPrediction, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (r reader) RegularSeasonStandings(ctx context.Context, seasonID int64) ([]domain.RegularSeasonStanding, error) {
	var rows []regularStandingModel
	err := r.db.NewSelect().Model(&rows).Where("rs.season_id = ?", seasonID).Order("rs.team_id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select regular season standings: %w", err)
	}
	out := make([]domain.RegularSeasonStanding, len(rows))
	for i, m := range rows {
		out[i] = domain.RegularSeasonStanding{
			SeasonID:   m.SeasonID,
			TeamID:     m.TeamID,
			Conference: m.Conference,
			Position:   m.Position,
			Wins:       m.Wins,
			Losses:     m.Losses,
		}
	}
	return out, nil
}

func (r reader) TournamentStandings(ctx context.Context, seasonID int64) ([]domain.TournamentStanding, error) {
	var rows []tournamentStandingModel
	err := r.db.NewSelect().Model(&rows).Where("ts.season_id = ?", seasonID).Order("ts.team_id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select tournament standings: %w", err)
	}
	out := make([]domain.TournamentStanding, len(rows))
	for i, m := range rows {
		out[i] = domain.TournamentStanding{
			SeasonID:          m.SeasonID,
			TeamID:            m.TeamID,
			Conference:        m.Conference,
			Group:             m.Group,
			GroupRank:         m.GroupRank,
			WildcardRank:      m.WildcardRank,
			KnockoutRank:      m.KnockoutRank,
			Wins:              m.Wins,
			Losses:            m.Losses,
			PointDifferential: m.PointDifferential,
			ClinchedGroup:     m.ClinchedGroup,
			ClinchedKnockout:  m.ClinchedKnockout,
			ClinchedWildcard:  m.ClinchedWildcard,
			IsChampion:        m.IsChampion,
		}
	}
	return out, nil
}

func (r reader) UserStats(ctx context.Context, seasonID int64) ([]domain.UserStats, error) {
	var rows []userStatsModel
	err := r.db.NewSelect().Model(&rows).Where("us.season_id = ?", seasonID).Order("us.user_id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select user stats: %w", err)
	}
	out := make([]domain.UserStats, len(rows))
	for i, m := range rows {
		out[i] = domain.UserStats{UserID: m.UserID, SeasonID: m.SeasonID, Points: m.Points}
	}
	return out, nil
}

func (r reader) Users(ctx context.Context, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []userModel
	err := r.db.NewSelect().Model(&rows).Where("u.id IN (?)", bun.In(ids)).Order("u.id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	out := make([]domain.User, len(rows))
	for i, m := range rows {
		out[i] = domain.User{ID: m.ID, Username: m.Username, DisplayName: m.DisplayName}
	}
	return out, nil
}

func (r reader) Teams(ctx context.Context) ([]domain.Team, error) {
	var rows []teamModel
	if err := r.db.NewSelect().Model(&rows).Order("t.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select teams: %w", err)
	}
	out := make([]domain.Team, len(rows))
	for i, m := range rows {
		out[i] = domain.Team{ID: m.ID, Name: m.Name, Abbreviation: m.Abbreviation, Conference: m.Conference}
	}
	return out, nil
}

func (r reader) Award(ctx context.Context, id int64) (domain.Award, error) {
	var m awardModel
	err := r.db.NewSelect().Model(&m).Where("aw.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Award{}, fmt.Errorf("%w: %d", domain.ErrAwardNotFound, id)
	}
	if err != nil {
		return domain.Award{}, fmt.Errorf("select award %d: %w", id, err)
	}
	return domain.Award{ID: m.ID, Name: m.Name}, nil
}

func (r reader) LatestOdds(ctx context.Context, awardID int64) ([]domain.OddsEntry, error) {
	latest := r.db.NewSelect().
		Model((*oddsModel)(nil)).
		ColumnExpr("max(o.scraped_at)").
		Where("o.award_id = ?", awardID)

	var rows []oddsModel
	err := r.db.NewSelect().Model(&rows).
		Where("o.award_id = ?", awardID).
		Where("o.scraped_at = (?)", latest).
		Order("o.rank").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select odds for award %d: %w", awardID, err)
	}
	out := make([]domain.OddsEntry, len(rows))
	for i, m := range rows {
		out[i] = domain.OddsEntry{AwardID: m.AwardID, PlayerName: m.PlayerName, Odds: m.Odds, Rank: m.Rank, ScrapedAt: m.ScrapedAt}
	}
	return out, nil
}

func (r reader) PlayerByName(ctx context.Context, name string) (domain.Player, bool, error) {
	var m playerModel
	err := r.db.NewSelect().Model(&m).Where("lower(p.name) = lower(?)", name).Order("p.id").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Player{}, false, nil
	}
	if err != nil {
		return domain.Player{}, false, fmt.Errorf("select player %q: %w", name, err)
	}
	return domain.Player{ID: m.ID, Name: m.Name}, true, nil
}

// txStore adds the write side on top of a bun.Tx.
type txStore struct {
	reader
	batchSize int
}

func (t *txStore) UpdateAnswerGrades(ctx context.Context, answers []domain.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([]answerModel, len(answers))
	for i, a := range answers {
		rows[i] = answerModel{ID: a.ID, PointsEarned: a.PointsEarned, IsCorrect: a.IsCorrect}
	}
	_, err := t.db.NewUpdate().
		Model(&rows).
		Column("points_earned", "is_correct").
		Bulk().
		Exec(ctx)
	return err
}

func (t *txStore) UpdateStandingPoints(ctx context.Context, predictions []domain.StandingPrediction) error {
	if len(predictions) == 0 {
		return nil
	}
	rows := make([]standingPredictionModel, len(predictions))
	for i, p := range predictions {
		rows[i] = standingPredictionModel{ID: p.ID, Points: p.Points}
	}
	_, err := t.db.NewUpdate().
		Model(&rows).
		Column("points").
		Bulk().
		Exec(ctx)
	return err
}

// ReplaceUserStats zeroes the season's rows, then upserts stats in batches.
func (t *txStore) ReplaceUserStats(ctx context.Context, seasonID int64, stats []domain.UserStats) error {
	_, err := t.db.NewUpdate().
		Model((*userStatsModel)(nil)).
		Set("points = 0").
		Where("season_id = ?", seasonID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("zero user stats: %w", err)
	}

	for start := 0; start < len(stats); start += t.batchSize {
		end := start + t.batchSize
		if end > len(stats) {
			end = len(stats)
		}
		rows := make([]userStatsModel, 0, end-start)
		for _, s := range stats[start:end] {
			if s.SeasonID != seasonID {
				return fmt.Errorf("user stats for season %d written under season %d", s.SeasonID, seasonID)
			}
			rows = append(rows, userStatsModel{UserID: s.UserID, SeasonID: s.SeasonID, Points: s.Points})
		}
		_, err := t.db.NewInsert().
			Model(&rows).
			On("CONFLICT (user_id, season_id) DO UPDATE").
			Set("points = EXCLUDED.points").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert user stats: %w", err)
		}
	}
	return nil
}

func (t *txStore) SaveQuestion(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	m, err := questionFromDomain(q)
	if err != nil {
		return err
	}
	res, err := t.db.NewUpdate().Model(&m).ExcludeColumn("id", "season_id", "kind").WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, q.ID)
	}
	return nil
}

func (t *txStore) AddSuperlativeWinner(ctx context.Context, questionID, playerID int64) error {
	_, err := t.db.NewInsert().
		Model(&winnerModel{QuestionID: questionID, PlayerID: playerID}).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}
