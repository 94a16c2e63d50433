package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"season-predictions/internal/domain"
	"season-predictions/internal/metrics"
)

// GraderName selects which graders a run executes.
type GraderName string

const (
	GraderStandings  GraderName = "standings"
	GraderAnswers    GraderName = "answers"
	GraderTournament GraderName = "tournament"
	GraderAll        GraderName = "all"
)

// Valid reports whether g names a known grader.
func (g GraderName) Valid() bool {
	switch g {
	case GraderStandings, GraderAnswers, GraderTournament, GraderAll:
		return true
	}
	return false
}

func (g GraderName) includes(other GraderName) bool {
	return g == GraderAll || g == other
}

// Skip reasons reported in RunSummary.SkipReasons.
const (
	SkipNoCorrectAnswer      = "no correct answer"
	SkipKnockoutNotStarted   = "knockout not started"
	SkipStandingsUnavailable = "standings unavailable"
	SkipMalformedAnswer      = "malformed answer"
	SkipTiebreaker           = "tiebreaker"
	SkipUnknownQuestion      = "unknown question"
)

// DefaultBatchSize bounds the number of rows per multi-row write.
const DefaultBatchSize = 500

// GradeRequest is the input of one grading run.
type GradeRequest struct {
	Season        string     `json:"season"`
	Grader        GraderName `json:"grader"`
	ForceKnockout bool       `json:"force_knockout"`
}

// StreamPoints totals the three independently summed point streams of a season.
type StreamPoints struct {
	Standings  float64 `json:"standings"`
	Answers    float64 `json:"answers"`
	Tournament float64 `json:"tournament"`
}

// RunSummary is reported for every run, successful or not.
type RunSummary struct {
	RunID          uuid.UUID      `json:"run_id"`
	Season         string         `json:"season"`
	Grader         GraderName     `json:"grader"`
	Processed      int            `json:"processed"`
	Updated        int            `json:"updated"`
	Skipped        int            `json:"skipped"`
	SkipReasons    map[string]int `json:"skip_reasons"`
	Points         StreamPoints   `json:"points"`
	Users          int            `json:"users"`
	KnockoutActive bool           `json:"knockout_active"`
	Duration       time.Duration  `json:"duration"`
}

// GradingService runs graders and the aggregator for one season inside one transaction.
type GradingService struct {
	store      Store
	catalog    CatalogLoader
	aggregator Aggregator
	log        zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	batchSize  int
	afterRun   []func(ctx context.Context, season domain.Season)
}

func NewGradingService(store Store, catalog CatalogLoader, log zerolog.Logger, m *metrics.Metrics) *GradingService {
	return &GradingService{
		store:     store,
		catalog:   catalog,
		log:       log,
		metrics:   m,
		now:       time.Now,
		batchSize: DefaultBatchSize,
	}
}

// SetClock is test-only for deterministic season resolution.
func (s *GradingService) SetClock(now func() time.Time) {
	s.now = now
}

// SetBatchSize overrides the multi-row write size; non-positive values are ignored.
func (s *GradingService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// OnCommitted registers a hook invoked after a run commits.
func (s *GradingService) OnCommitted(fn func(ctx context.Context, season domain.Season)) {
	s.afterRun = append(s.afterRun, fn)
}

// Grade executes one run. Missing seasons abort before any work; any other
// failure rolls the transaction back and is returned wrapped in domain.ErrRunFailed.
func (s *GradingService) Grade(ctx context.Context, req GradeRequest) (summary RunSummary, err error) {
	if req.Grader == "" {
		req.Grader = GraderAll
	}
	if !req.Grader.Valid() {
		return summary, fmt.Errorf("%w: %q", domain.ErrInvalidGrader, req.Grader)
	}

	season, err := ResolveSeason(ctx, s.store, req.Season, s.now())
	if err != nil {
		return summary, err
	}

	start := time.Now()
	summary = RunSummary{
		RunID:       uuid.New(),
		Season:      season.Slug,
		Grader:      req.Grader,
		SkipReasons: make(map[string]int),
	}
	logger := s.log.With().
		Str("run_id", summary.RunID.String()).
		Str("season", season.Slug).
		Str("grader", string(req.Grader)).
		Logger()
	logger.Info().Bool("force_knockout", req.ForceKnockout).Msg("grading run started")

	r := &run{
		season:    season,
		log:       logger,
		batchSize: s.batchSize,
		tally:     newTally(),
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrRunFailed, p)
			logger.Error().Str("stack", string(debug.Stack())).Msgf("grading run panicked: %v", p)
		}
		// Counts cover the work attempted even when the transaction rolled back.
		r.tally.apply(&summary)
		summary.KnockoutActive = r.knockout
		summary.Duration = time.Since(start)
		status := "ok"
		if err != nil {
			status = "error"
			logger.Error().Err(err).Int("processed", summary.Processed).Msg("grading run failed")
		} else {
			logger.Info().
				Int("processed", summary.Processed).
				Int("updated", summary.Updated).
				Int("skipped", summary.Skipped).
				Interface("skip_reasons", summary.SkipReasons).
				Float64("standings_points", summary.Points.Standings).
				Float64("answer_points", summary.Points.Answers).
				Float64("tournament_points", summary.Points.Tournament).
				Dur("took", summary.Duration).
				Msg("grading run finished")
		}
		s.metrics.ObserveRun(string(req.Grader), status, summary.Processed, summary.Updated, summary.Skipped, summary.Duration)
	}()

	var tables LookupTables
	if req.Grader.includes(GraderAnswers) {
		// Point math reads the catalog directly; the display cache may be stale.
		tables, err = BuildLookupTables(ctx, s.catalog)
		if err != nil {
			return summary, fmt.Errorf("%w: %w", domain.ErrRunFailed, err)
		}
	}

	var totals Totals
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if req.Grader.includes(GraderStandings) {
			if err := r.gradeStandings(ctx, tx); err != nil {
				return fmt.Errorf("grade standings: %w", err)
			}
		}
		if req.Grader.includes(GraderAnswers) {
			if err := r.gradeAnswers(ctx, tx, tables); err != nil {
				return fmt.Errorf("grade answers: %w", err)
			}
		}
		if req.Grader.includes(GraderTournament) {
			if err := r.gradeTournament(ctx, tx, req.ForceKnockout); err != nil {
				return fmt.Errorf("grade tournament: %w", err)
			}
		}

		var err error
		totals, err = s.aggregator.Recompute(ctx, tx, season.ID)
		if err != nil {
			return fmt.Errorf("recompute user stats: %w", err)
		}
		return nil
	})

	if err != nil {
		if domain.IsMissingEntity(err) {
			return summary, err
		}
		return summary, fmt.Errorf("%w: %w", domain.ErrRunFailed, err)
	}

	summary.Points = totals.Points
	summary.Users = len(totals.Users)
	for _, fn := range s.afterRun {
		fn(ctx, season)
	}
	return summary, nil
}

// ResolveSeason maps a season reference ("" and "current" mean latest started) to a season.
func ResolveSeason(ctx context.Context, r Reader, ref string, now time.Time) (domain.Season, error) {
	if ref == "" || ref == domain.CurrentSeason {
		return r.LatestSeason(ctx, now)
	}
	return r.SeasonBySlug(ctx, ref)
}

// run carries per-run state shared by the graders.
type run struct {
	season    domain.Season
	log       zerolog.Logger
	batchSize int
	tally     *tally
	knockout  bool
}

// skip counts a not-yet-gradable or malformed record and logs it.
func (r *run) skip(reason string) *zerolog.Event {
	r.tally.skipped++
	r.tally.reasons[reason]++
	return r.log.Warn().Str("reason", reason)
}

type tally struct {
	processed int
	updated   int
	skipped   int
	reasons   map[string]int
}

func newTally() *tally {
	return &tally{reasons: make(map[string]int)}
}

func (t *tally) apply(s *RunSummary) {
	s.Processed = t.processed
	s.Updated = t.updated
	s.Skipped = t.skipped
	for k, v := range t.reasons {
		s.SkipReasons[k] = v
	}
}

// inBatches calls write with consecutive slices of at most size rows.
func inBatches[T any](rows []T, size int, write func([]T) error) error {
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		if err := write(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}
