package storage

import (
	"context"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

// Repository defines the complete storage interface.
// The reconciler only needs store.Store; the rest serves loaders, the API
// and run history.
type Repository interface {
	store.Store
	RecordRepository
	RunRepository
	Close() error
}

// RecordRepository handles source record operations
type RecordRepository interface {
	// SaveRecord inserts or replaces a record
	SaveRecord(ctx context.Context, record *Record) error

	// GetRecord retrieves a record, returning store.ErrNotFound when absent
	GetRecord(ctx context.Context, source candidate.Source, id string) (*Record, error)
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// StartRun records the start of a run
	StartRun(run *RunRecord) error

	// CompleteRun records the final counts and status of a run
	CompleteRun(run *RunRecord) error

	// GetRun retrieves a run by ID
	GetRun(runID string) (*RunRecord, error)

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]RunRecord, error)

	// SaveMatchResults stores the match results of a run
	SaveMatchResults(runID string, results []MatchRecord) error

	// ListMatchResults returns the match results of a run
	ListMatchResults(runID string, limit, offset int) ([]MatchRecord, error)
}
