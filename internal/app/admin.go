package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"season-predictions/internal/domain"
	"season-predictions/internal/metrics"
)

// AdminService holds the operations behind the admin surfaces: answer keys,
// award odds and lookup refreshes. Answer changes take effect on the next grading run.
type AdminService struct {
	store   Store
	lookups LookupCache
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAdminService(store Store, lookups LookupCache, log zerolog.Logger, m *metrics.Metrics) *AdminService {
	return &AdminService{store: store, lookups: lookups, log: log, metrics: m, now: time.Now}
}

// SetClock is test-only for deterministic timestamps.
func (s *AdminService) SetClock(now func() time.Time) {
	s.now = now
}

// RefreshLookups clears and rebuilds the name tables.
func (s *AdminService) RefreshLookups(ctx context.Context) (LookupTables, error) {
	tables, err := s.lookups.Refresh(ctx)
	s.metrics.ObserveRefresh(err)
	if err != nil {
		s.log.Error().Err(err).Msg("lookup refresh failed")
		return LookupTables{}, err
	}
	s.log.Info().Int("players", len(tables.Players)).Int("teams", len(tables.Teams)).Msg("lookup tables refreshed")
	return tables, nil
}

// SetCorrectAnswer records the answer key of a question. An empty value puts the
// question back to pending. Only correct_answer and the manual marker change; a
// superlative keeps its finalized flag and winners, which FinalizeWinners owns.
func (s *AdminService) SetCorrectAnswer(ctx context.Context, questionID int64, value string) (domain.Question, error) {
	value = strings.TrimSpace(value)
	var out domain.Question
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		q, err := tx.Question(ctx, questionID)
		if err != nil {
			return err
		}
		if value == "" {
			q.CorrectAnswer = nil
		} else {
			q.CorrectAnswer = &value
		}
		q.IsManual = true
		q.LastUpdated = s.now()
		if err := tx.SaveQuestion(ctx, q); err != nil {
			return fmt.Errorf("save question %d: %w", q.ID, err)
		}
		out = q
		return nil
	})
	return out, err
}

// UpdateFromLatestOdds copies the newest odds leader and runner-up onto a
// superlative question. Until the question is finalized the leader also becomes
// the provisional correct answer.
func (s *AdminService) UpdateFromLatestOdds(ctx context.Context, questionID int64) (domain.Question, error) {
	var out domain.Question
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		q, v, err := superlative(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if _, err := tx.Award(ctx, v.AwardID); err != nil {
			return err
		}
		odds, err := tx.LatestOdds(ctx, v.AwardID)
		if err != nil {
			return fmt.Errorf("load odds for award %d: %w", v.AwardID, err)
		}
		if len(odds) == 0 {
			s.log.Warn().Int64("question_id", q.ID).Int64("award_id", v.AwardID).Msg("no odds snapshot for award")
			out = q
			return nil
		}
		sort.SliceStable(odds, func(i, j int) bool { return odds[i].Rank < odds[j].Rank })

		v.CurrentLeader = odds[0].PlayerName
		v.CurrentLeaderOdds = odds[0].Odds
		v.CurrentRunnerUp, v.RunnerUpOdds = "", ""
		if len(odds) > 1 {
			v.CurrentRunnerUp = odds[1].PlayerName
			v.RunnerUpOdds = odds[1].Odds
		}
		if !v.IsFinalized {
			leader := v.CurrentLeader
			q.CorrectAnswer = &leader
		}
		q.LastUpdated = s.now()
		if err := tx.SaveQuestion(ctx, q); err != nil {
			return fmt.Errorf("save question %d: %w", q.ID, err)
		}
		out = q
		return nil
	})
	return out, err
}

// FinalizeWinners locks in the true winner of a superlative question. It is
// idempotent; an unknown player name still records the answer.
func (s *AdminService) FinalizeWinners(ctx context.Context, questionID int64, name string) (domain.Question, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Question{}, errors.New("winner name is required")
	}
	var out domain.Question
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		q, _, err := superlative(ctx, tx, questionID)
		if err != nil {
			return err
		}
		out, err = s.finalize(ctx, tx, q, name)
		return err
	})
	return out, err
}

func (s *AdminService) finalize(ctx context.Context, tx Tx, q domain.Question, name string) (domain.Question, error) {
	v := q.Variant.(*domain.SuperlativeQuestion)
	q.CorrectAnswer = &name
	v.IsFinalized = true
	q.LastUpdated = s.now()

	player, found, err := tx.PlayerByName(ctx, name)
	if err != nil {
		return q, fmt.Errorf("look up player %q: %w", name, err)
	}
	if !found {
		s.log.Warn().Int64("question_id", q.ID).Str("winner", name).Msg("winner not in player catalog, skipping winner link")
	} else if !containsID(v.WinnerIDs, player.ID) {
		if err := tx.AddSuperlativeWinner(ctx, q.ID, player.ID); err != nil {
			return q, fmt.Errorf("add winner %d: %w", player.ID, err)
		}
		v.WinnerIDs = append(v.WinnerIDs, player.ID)
	}

	if err := tx.SaveQuestion(ctx, q); err != nil {
		return q, fmt.Errorf("save question %d: %w", q.ID, err)
	}
	return q, nil
}

func superlative(ctx context.Context, r Reader, questionID int64) (domain.Question, *domain.SuperlativeQuestion, error) {
	q, err := r.Question(ctx, questionID)
	if err != nil {
		return domain.Question{}, nil, err
	}
	v, ok := q.Variant.(*domain.SuperlativeQuestion)
	if !ok {
		return domain.Question{}, nil, fmt.Errorf("%w: question %d is %s", domain.ErrNotSuperlative, q.ID, q.Kind())
	}
	return q, v, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
