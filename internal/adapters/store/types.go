// Package store defines the contract between the reconciliation engine and
// the external record store that supplies candidates and receives
// reconciliation state updates.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

var (
	// ErrNotFound is returned when an update targets an unknown record
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a conditional update finds the record in
	// a state other than the expected ones
	ErrConflict = errors.New("record state changed")
)

// RawRecord is a source-specific record as the store holds it
type RawRecord struct {
	Source candidate.Source
	Fields map[string]any

	// Reconciliation state tracked by the store
	State candidate.State
	Link  *candidate.Link
}

// Query selects records for a run
type Query struct {
	Sources []candidate.Source
	From    time.Time
	To      time.Time
	States  []candidate.State
	Offset  int
	Limit   int
}

// Page is one slice of query results. An empty page ends pagination.
type Page struct {
	Records []RawRecord
}

// Patch is a reconciliation state update merged additively into a record.
// ExpectStates, when set, makes the update conditional on the current state.
type Patch struct {
	State        candidate.State
	Link         *candidate.Link
	Confidence   float64
	Reason       string
	Timestamp    time.Time
	RunID        string
	ExpectStates []candidate.State
}

// Store is the paginated query and update surface the engine depends on
type Store interface {
	Query(ctx context.Context, q Query) (Page, error)
	Update(ctx context.Context, source candidate.Source, id string, patch Patch) error
}
