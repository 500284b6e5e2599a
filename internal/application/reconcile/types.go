package reconcile

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/settlement"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
)

// Run statuses
const (
	StatusRunning             = "running"
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// Options holds run configuration
type Options struct {
	DryRun  bool
	Sources []candidate.Source

	// Date window for bank entries. Zero values fall back to LookbackDays
	// ending today.
	From         time.Time
	To           time.Time
	LookbackDays int

	Currency  string
	Threshold float64 // 0 keeps the engine's threshold

	PreserveReconciliation bool
	MarkNeedsReview        bool

	SampleSize int
	PageSize   int
	MaxPages   int
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Sources:                candidate.RecordSources,
		LookbackDays:           30,
		PreserveReconciliation: true,
		SampleSize:             25,
		PageSize:               200,
		MaxPages:               10000,
	}
}

// Summary is the outcome of one run
type Summary struct {
	RunID       string
	DryRun      bool
	Sources     []candidate.Source
	From        time.Time
	To          time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Status      string
	Error       string

	CandidatesScanned int
	Targets           int
	Counterparts      int
	Matched           int
	NeedsReview       int
	SkippedInvalid    int
	SkippedPreserved  int
	SkippedCurrency   int
	Conflicts         int
	Errors            int
	Unmatched         int

	ByMatchType       map[candidate.MatchType]int
	TotalValueMatched decimal.Decimal

	SampleMatches     []*matcher.MatchResult
	UnresolvedBatches []settlement.Unresolved
	ValidationErrors  []string
	WriteErrors       []string
}

// Skipped is every candidate left out of matching or writing on purpose
func (s *Summary) Skipped() int {
	return s.SkippedInvalid + s.SkippedPreserved + s.SkippedCurrency + s.Conflicts
}

// Orchestrator runs reconciliation
type Orchestrator struct {
	store      store.Store
	runs       RunRecorder
	engine     *matcher.Engine
	aggregator *settlement.Aggregator
	applier    *Applier
	metrics    Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator creates a new reconciliation orchestrator. runs may be
// nil when run history is not kept.
func NewOrchestrator(
	st store.Store,
	runs RunRecorder,
	engine *matcher.Engine,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      st,
		runs:       runs,
		engine:     engine,
		aggregator: settlement.NewAggregator(),
		applier:    NewApplier(st, logger),
		metrics:    nopMetrics{},
		logger:     logger,
		now:        time.Now,
	}
}

// SetMetrics installs a metrics recorder
func (o *Orchestrator) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	o.metrics = m
}

// SetClock replaces the time source used for run timestamps and links
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// FetchError aborts a run when the store cannot be paged
type FetchError struct {
	Page   int
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch page %d (offset %d): %v", e.Page, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError is a failed update of one participant of a match result
type WriteError struct {
	Source candidate.Source
	ID     string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to update %s %s: %v", e.Source, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// RunRecorder persists run history
type RunRecorder interface {
	StartRun(run *storage.RunRecord) error
	CompleteRun(run *storage.RunRecord) error
	SaveMatchResults(runID string, results []storage.MatchRecord) error
}

// Metrics receives run instrumentation
type Metrics interface {
	RunCompleted(dryRun bool, status string, duration time.Duration)
	MatchRecorded(matchType, outcome string)
	CandidatesSkipped(reason string, n int)
	WriteFailed()
	ValueMatched(amount float64)
}

type nopMetrics struct{}

func (nopMetrics) RunCompleted(bool, string, time.Duration) {}
func (nopMetrics) MatchRecorded(string, string)              {}
func (nopMetrics) CandidatesSkipped(string, int)             {}
func (nopMetrics) WriteFailed()                              {}
func (nopMetrics) ValueMatched(float64)                      {}
