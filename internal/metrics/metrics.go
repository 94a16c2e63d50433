package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for grading runs and lookup refreshes.
type Metrics struct {
	Runs          *prometheus.CounterVec
	Records       *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	LookupRefresh *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "predictions",
				Subsystem: "grading",
				Name:      "runs_total",
				Help:      "Grading runs by grader and final status",
			},
			[]string{"grader", "status"},
		),
		Records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "predictions",
				Subsystem: "grading",
				Name:      "records_total",
				Help:      "Records touched by grading runs",
			},
			[]string{"grader", "outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "predictions",
				Subsystem: "grading",
				Name:      "run_duration_seconds",
				Help:      "Grading run duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"grader"},
		),
		LookupRefresh: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "predictions",
				Subsystem: "lookup",
				Name:      "refresh_total",
				Help:      "Name lookup table refreshes",
			},
			[]string{"status"},
		),
	}
}

// ObserveRun records one finished run. A nil receiver is a no-op.
func (m *Metrics) ObserveRun(grader, status string, processed, updated, skipped int, took time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(grader, status).Inc()
	m.Records.WithLabelValues(grader, "processed").Add(float64(processed))
	m.Records.WithLabelValues(grader, "updated").Add(float64(updated))
	m.Records.WithLabelValues(grader, "skipped").Add(float64(skipped))
	m.RunDuration.WithLabelValues(grader).Observe(took.Seconds())
}

// ObserveRefresh records a lookup refresh outcome.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LookupRefresh.WithLabelValues(status).Inc()
}
