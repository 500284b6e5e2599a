package reconcile

import (
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// Run history is best effort: a failing recorder is logged and the run
// carries on.

// startRun records the start of a run
func (o *Orchestrator) startRun(summary *Summary) {
	if o.runs == nil {
		return
	}
	if err := o.runs.StartRun(runRecord(summary)); err != nil {
		o.logger.Warn("Failed to record run start", "run_id", summary.RunID, "error", err)
	}
}

// completeRun records the final state of a run
func (o *Orchestrator) completeRun(summary *Summary) {
	if o.runs == nil {
		return
	}
	if err := o.runs.CompleteRun(runRecord(summary)); err != nil {
		o.logger.Warn("Failed to record run completion", "run_id", summary.RunID, "error", err)
	}
}

// recordResults stores every match result of the run
func (o *Orchestrator) recordResults(summary *Summary, results []*matcher.MatchResult) {
	if o.runs == nil || len(results) == 0 {
		return
	}
	records := make([]storage.MatchRecord, 0, len(results))
	for _, r := range results {
		records = append(records, matchRecord(summary, r))
	}
	if err := o.runs.SaveMatchResults(summary.RunID, records); err != nil {
		o.logger.Warn("Failed to record match results", "run_id", summary.RunID, "count", len(records), "error", err)
	}
}

func runRecord(s *Summary) *storage.RunRecord {
	sources := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		sources[i] = string(src)
	}
	counts := make(map[string]int, len(s.ByMatchType))
	for mt, n := range s.ByMatchType {
		counts[string(mt)] = n
	}

	rec := &storage.RunRecord{
		ID:                s.RunID,
		StartedAt:         s.StartedAt,
		DryRun:            s.DryRun,
		Sources:           sources,
		DateFrom:          s.From.Format("2006-01-02"),
		DateTo:            s.To.Format("2006-01-02"),
		CandidatesScanned: s.CandidatesScanned,
		Matched:           s.Matched,
		NeedsReview:       s.NeedsReview,
		Skipped:           s.Skipped(),
		Conflicts:         s.Conflicts,
		Errors:            s.Errors,
		Unmatched:         s.Unmatched,
		TotalValueMatched: s.TotalValueMatched.StringFixed(2),
		MatchTypeCounts:   counts,
		Status:            s.Status,
		ErrorMessage:      s.Error,
	}
	if !s.CompletedAt.IsZero() {
		completed := s.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec
}

func matchRecord(s *Summary, r *matcher.MatchResult) storage.MatchRecord {
	refs := make([]storage.CounterpartRef, len(r.Members))
	for i, m := range r.Members {
		refs[i] = storage.CounterpartRef{Source: string(m.Source), ID: m.ID}
	}
	return storage.MatchRecord{
		RunID:        s.RunID,
		TargetSource: string(r.Target.Source),
		TargetID:     r.Target.ID,
		Counterparts: refs,
		BatchID:      r.BatchID(),
		MatchType:    string(r.MatchType),
		Confidence:   r.Confidence,
		Outcome:      string(r.Outcome),
		Reason:       r.Reason,
		Applied:      r.Applied,
		CreatedAt:    s.StartedAt,
	}
}
