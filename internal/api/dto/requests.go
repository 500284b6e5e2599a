package dto

// ReconcileRequest starts a run. Omitted fields fall back to the server's
// configured run defaults.
type ReconcileRequest struct {
	DryRun       bool     `json:"dry_run"`
	Sources      []string `json:"sources,omitempty"`
	From         string   `json:"from,omitempty"` // YYYY-MM-DD
	To           string   `json:"to,omitempty"`   // YYYY-MM-DD
	LookbackDays int      `json:"lookback_days,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Threshold    float64  `json:"threshold,omitempty"`

	PreserveReconciliation *bool `json:"preserve_reconciliation,omitempty"`
	MarkNeedsReview        *bool `json:"mark_needs_review,omitempty"`
	SampleSize             *int  `json:"sample_size,omitempty"`
}
