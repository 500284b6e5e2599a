// Package metrics exposes Prometheus instrumentation for reconciliation runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records run, match and write counters
type Metrics struct {
	// Runs by dry_run flag and final status
	Runs *prometheus.CounterVec

	RunDuration prometheus.Histogram

	// Results by match type and outcome (matched, needs_review, preserved, ...)
	Matches *prometheus.CounterVec

	// Candidates left out by reason (invalid, preserved, currency, conflict)
	Skipped *prometheus.CounterVec

	WriteErrors prometheus.Counter

	// Absolute value of applied matches
	valueMatched prometheus.Counter

	gatherer prometheus.Gatherer
}

var _ reconcile.Metrics = (*Metrics)(nil)

// New registers all reconciliation metrics on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all reconciliation metrics on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total reconciliation runs by mode and status",
		}, []string{"dry_run", "status"}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconcile_run_duration_seconds",
			Help:    "Duration of a full reconciliation run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		Matches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_matches_total",
			Help: "Match results by match type and outcome",
		}, []string{"match_type", "outcome"}),

		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_candidates_skipped_total",
			Help: "Candidates skipped by reason",
		}, []string{"reason"}),

		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_write_errors_total",
			Help: "Failed store updates",
		}),

		valueMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_value_matched_total",
			Help: "Absolute amount of bank entries matched and applied",
		}),

		gatherer: reg,
	}
}

// RunCompleted records a finished run
func (m *Metrics) RunCompleted(dryRun bool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(strconv.FormatBool(dryRun), status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// MatchRecorded records one match result
func (m *Metrics) MatchRecorded(matchType, outcome string) {
	if m != nil {
		m.Matches.WithLabelValues(matchType, outcome).Inc()
	}
}

// CandidatesSkipped adds n skipped candidates under reason
func (m *Metrics) CandidatesSkipped(reason string, n int) {
	if m != nil && n > 0 {
		m.Skipped.WithLabelValues(reason).Add(float64(n))
	}
}

// WriteFailed records a failed update
func (m *Metrics) WriteFailed() {
	if m != nil {
		m.WriteErrors.Inc()
	}
}

// ValueMatched adds an applied amount
func (m *Metrics) ValueMatched(amount float64) {
	if m != nil && amount > 0 {
		m.valueMatched.Add(amount)
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
