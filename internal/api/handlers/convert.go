package handlers

import (
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

const dateLayout = "2006-01-02"

// toRunResponse converts a storage RunRecord to an API response.
func toRunResponse(run storage.RunRecord) dto.RunResponse {
	return dto.RunResponse{
		ID:                run.ID,
		StartedAt:         run.StartedAt,
		CompletedAt:       run.CompletedAt,
		DryRun:            run.DryRun,
		Sources:           run.Sources,
		DateFrom:          run.DateFrom,
		DateTo:            run.DateTo,
		CandidatesScanned: run.CandidatesScanned,
		Matched:           run.Matched,
		NeedsReview:       run.NeedsReview,
		Skipped:           run.Skipped,
		Conflicts:         run.Conflicts,
		Errors:            run.Errors,
		Unmatched:         run.Unmatched,
		TotalValueMatched: run.TotalValueMatched,
		MatchTypeCounts:   run.MatchTypeCounts,
		Status:            run.Status,
		ErrorMessage:      run.ErrorMessage,
	}
}

func toMatchRecordResponse(m storage.MatchRecord) dto.MatchRecordResponse {
	resp := dto.MatchRecordResponse{
		ID:           m.ID,
		TargetSource: m.TargetSource,
		TargetID:     m.TargetID,
		Counterparts: make([]dto.CounterpartResponse, 0, len(m.Counterparts)),
		BatchID:      m.BatchID,
		MatchType:    m.MatchType,
		Confidence:   m.Confidence,
		Outcome:      m.Outcome,
		Reason:       m.Reason,
		Applied:      m.Applied,
		CreatedAt:    m.CreatedAt,
	}
	for _, cp := range m.Counterparts {
		resp.Counterparts = append(resp.Counterparts, dto.CounterpartResponse{Source: cp.Source, ID: cp.ID})
	}
	return resp
}

func toRecordResponse(r *storage.Record) dto.RecordResponse {
	resp := dto.RecordResponse{
		Source:    string(r.Source),
		ID:        r.ID,
		State:     string(r.State),
		Fields:    r.Fields,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Date != nil {
		resp.Date = r.Date.Format(dateLayout)
	}
	if r.Link != nil {
		resp.Link = &dto.LinkResponse{
			CounterpartID:     r.Link.CounterpartID,
			CounterpartSource: string(r.Link.CounterpartSource),
			MatchType:         string(r.Link.MatchType),
			Confidence:        r.Link.Confidence,
			Manual:            r.Link.Manual,
			LinkedAt:          r.Link.LinkedAt,
		}
	}
	return resp
}
