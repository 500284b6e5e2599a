package storage

import (
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

// Record is a stored source record with its reconciliation state
type Record struct {
	Source    candidate.Source `json:"source"`
	ID        string           `json:"id"`
	Date      *time.Time       `json:"date,omitempty"` // nil when the record has no usable date
	State     candidate.State  `json:"state"`
	Link      *candidate.Link  `json:"link,omitempty"`
	Fields    map[string]any   `json:"fields"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Raw converts the record into the shape the reconciler reads
func (r *Record) Raw() store.RawRecord {
	return store.RawRecord{
		Source: r.Source,
		Fields: r.Fields,
		State:  r.State,
		Link:   r.Link,
	}
}

// RunRecord represents a persisted reconciliation run
type RunRecord struct {
	ID                string         `json:"id"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	DryRun            bool           `json:"dry_run"`
	Sources           []string       `json:"sources"`
	DateFrom          string         `json:"date_from"`
	DateTo            string         `json:"date_to"`
	CandidatesScanned int            `json:"candidates_scanned"`
	Matched           int            `json:"matched"`
	NeedsReview       int            `json:"needs_review"`
	Skipped           int            `json:"skipped"`
	Conflicts         int            `json:"conflicts"`
	Errors            int            `json:"errors"`
	Unmatched         int            `json:"unmatched"`
	TotalValueMatched string         `json:"total_value_matched"`
	MatchTypeCounts   map[string]int `json:"match_type_counts"`
	Status            string         `json:"status"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}

// CounterpartRef names one member of a match result
type CounterpartRef struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// MatchRecord is one persisted match result of a run
type MatchRecord struct {
	ID           int64            `json:"id"`
	RunID        string           `json:"run_id"`
	TargetSource string           `json:"target_source"`
	TargetID     string           `json:"target_id"`
	Counterparts []CounterpartRef `json:"counterparts"`
	BatchID      string           `json:"batch_id,omitempty"`
	MatchType    string           `json:"match_type"`
	Confidence   float64          `json:"confidence"`
	Outcome      string           `json:"outcome"`
	Reason       string           `json:"reason,omitempty"`
	Applied      bool             `json:"applied"`
	CreatedAt    time.Time        `json:"created_at"`
}
