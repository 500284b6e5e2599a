package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// CounterpartResponse names one member of a match.
type CounterpartResponse struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// MatchResponse is one match result from a run summary.
type MatchResponse struct {
	TargetSource string                `json:"target_source"`
	TargetID     string                `json:"target_id"`
	Counterparts []CounterpartResponse `json:"counterparts"`
	BatchID      string                `json:"batch_id,omitempty"`
	MatchType    string                `json:"match_type"`
	Confidence   float64               `json:"confidence"`
	Outcome      string                `json:"outcome"`
	Reason       string                `json:"reason,omitempty"`
	Amount       string                `json:"amount"`
	Applied      bool                  `json:"applied"`
}

// UnresolvedBatchResponse is a settlement batch left out of matching.
type UnresolvedBatchResponse struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Members int    `json:"members"`
}

// SummaryResponse is returned by POST /api/reconcile.
type SummaryResponse struct {
	RunID       string   `json:"run_id"`
	DryRun      bool     `json:"dry_run"`
	Sources     []string `json:"sources"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	StartedAt   string   `json:"started_at"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Status      string   `json:"status"`
	Error       string   `json:"error,omitempty"`

	CandidatesScanned int `json:"candidates_scanned"`
	Targets           int `json:"targets"`
	Counterparts      int `json:"counterparts"`
	Matched           int `json:"matched"`
	NeedsReview       int `json:"needs_review"`
	Skipped           int `json:"skipped"`
	SkippedInvalid    int `json:"skipped_invalid"`
	SkippedPreserved  int `json:"skipped_preserved"`
	SkippedCurrency   int `json:"skipped_currency"`
	Conflicts         int `json:"conflicts"`
	Errors            int `json:"errors"`
	Unmatched         int `json:"unmatched"`

	ByMatchType       map[string]int `json:"by_match_type"`
	TotalValueMatched string         `json:"total_value_matched"`

	SampleMatches     []MatchResponse           `json:"sample_matches"`
	UnresolvedBatches []UnresolvedBatchResponse `json:"unresolved_batches,omitempty"`
	ValidationErrors  []string                  `json:"validation_errors,omitempty"`
	WriteErrors       []string                  `json:"write_errors,omitempty"`
}

// RunResponse represents a persisted run in API responses.
type RunResponse struct {
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

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// MatchRecordResponse is a persisted match result.
type MatchRecordResponse struct {
	ID           int64                 `json:"id"`
	TargetSource string                `json:"target_source"`
	TargetID     string                `json:"target_id"`
	Counterparts []CounterpartResponse `json:"counterparts"`
	BatchID      string                `json:"batch_id,omitempty"`
	MatchType    string                `json:"match_type"`
	Confidence   float64               `json:"confidence"`
	Outcome      string                `json:"outcome"`
	Reason       string                `json:"reason,omitempty"`
	Applied      bool                  `json:"applied"`
	CreatedAt    time.Time             `json:"created_at"`
}

// MatchListResponse is returned when listing the matches of a run.
type MatchListResponse struct {
	RunID   string                `json:"run_id"`
	Matches []MatchRecordResponse `json:"matches"`
	Count   int                   `json:"count"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// LinkResponse is the reconciliation link carried by a record.
type LinkResponse struct {
	CounterpartID     string    `json:"counterpart_id"`
	CounterpartSource string    `json:"counterpart_source"`
	MatchType         string    `json:"match_type"`
	Confidence        float64   `json:"confidence"`
	Manual            bool      `json:"manual,omitempty"`
	LinkedAt          time.Time `json:"linked_at"`
}

// RecordResponse is a stored source record.
type RecordResponse struct {
	Source    string         `json:"source"`
	ID        string         `json:"id"`
	Date      string         `json:"date,omitempty"`
	State     string         `json:"state"`
	Link      *LinkResponse  `json:"link,omitempty"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}
