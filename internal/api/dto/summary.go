package dto

import (
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
)

// NewSummaryResponse converts a run summary to its API shape.
func NewSummaryResponse(s *reconcile.Summary) SummaryResponse {
	resp := SummaryResponse{
		RunID:             s.RunID,
		DryRun:            s.DryRun,
		Sources:           make([]string, len(s.Sources)),
		From:              s.From.Format("2006-01-02"),
		To:                s.To.Format("2006-01-02"),
		StartedAt:         s.StartedAt.UTC().Format(time.RFC3339),
		Status:            s.Status,
		Error:             s.Error,
		CandidatesScanned: s.CandidatesScanned,
		Targets:           s.Targets,
		Counterparts:      s.Counterparts,
		Matched:           s.Matched,
		NeedsReview:       s.NeedsReview,
		Skipped:           s.Skipped(),
		SkippedInvalid:    s.SkippedInvalid,
		SkippedPreserved:  s.SkippedPreserved,
		SkippedCurrency:   s.SkippedCurrency,
		Conflicts:         s.Conflicts,
		Errors:            s.Errors,
		Unmatched:         s.Unmatched,
		ByMatchType:       make(map[string]int, len(s.ByMatchType)),
		TotalValueMatched: s.TotalValueMatched.StringFixed(2),
		SampleMatches:     make([]MatchResponse, 0, len(s.SampleMatches)),
		ValidationErrors:  s.ValidationErrors,
		WriteErrors:       s.WriteErrors,
	}
	if !s.CompletedAt.IsZero() {
		resp.CompletedAt = s.CompletedAt.UTC().Format(time.RFC3339)
	}
	for i, src := range s.Sources {
		resp.Sources[i] = string(src)
	}
	for mt, n := range s.ByMatchType {
		resp.ByMatchType[string(mt)] = n
	}
	for _, res := range s.SampleMatches {
		resp.SampleMatches = append(resp.SampleMatches, newMatchResponse(res))
	}
	for _, u := range s.UnresolvedBatches {
		resp.UnresolvedBatches = append(resp.UnresolvedBatches, UnresolvedBatchResponse{
			ID:      u.ID,
			Reason:  u.Reason,
			Members: u.Members,
		})
	}
	return resp
}

func newMatchResponse(res *matcher.MatchResult) MatchResponse {
	m := MatchResponse{
		TargetSource: string(res.Target.Source),
		TargetID:     res.Target.ID,
		Counterparts: make([]CounterpartResponse, 0, len(res.Members)),
		BatchID:      res.BatchID(),
		MatchType:    string(res.MatchType),
		Confidence:   res.Confidence,
		Outcome:      string(res.Outcome),
		Reason:       res.Reason,
		Amount:       res.Target.Amount.StringFixed(2),
		Applied:      res.Applied,
	}
	for _, member := range res.Members {
		m.Counterparts = append(m.Counterparts, CounterpartResponse{Source: string(member.Source), ID: member.ID})
	}
	return m
}

