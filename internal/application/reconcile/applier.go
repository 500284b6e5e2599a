package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
)

// ApplyStatus is what happened when a result was applied
type ApplyStatus string

const (
	ApplyApplied      ApplyStatus = "applied"
	ApplyDryRun       ApplyStatus = "dry_run"
	ApplyPreserved    ApplyStatus = "preserved"
	ApplyConflict     ApplyStatus = "conflict"
	ApplyFailed       ApplyStatus = "failed"
	ApplyReviewMarked ApplyStatus = "review_marked"
	ApplyReviewOnly   ApplyStatus = "review_only"
)

// ApplyOptions controls how results are written
type ApplyOptions struct {
	DryRun                 bool
	PreserveReconciliation bool
	MarkNeedsReview        bool
	RunID                  string
	Now                    time.Time
}

// ApplyOutcome reports the writes made for one result
type ApplyOutcome struct {
	Status ApplyStatus
	Writes int
	Err    error
}

// Applier writes match results back to the store
type Applier struct {
	store  store.Store
	logger *slog.Logger
}

// NewApplier creates an applier
func NewApplier(st store.Store, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{store: st, logger: logger}
}

// Apply writes one result. Writes are sequential and not rolled back: a
// failure part way leaves earlier participants linked and is reported as a
// WriteError with the count of writes that succeeded.
func (a *Applier) Apply(ctx context.Context, res *matcher.MatchResult, opts ApplyOptions) ApplyOutcome {
	if res.Outcome == matcher.OutcomeNeedsReview {
		return a.applyReview(ctx, res, opts)
	}

	for _, p := range res.Participants() {
		if p.HasManualLink() || (opts.PreserveReconciliation && p.IsReconciled()) {
			a.logger.Debug("Skipping result with preserved participant",
				"target", res.Target.Key(),
				"participant", p.Key(),
			)
			return ApplyOutcome{Status: ApplyPreserved}
		}
	}

	if opts.DryRun {
		a.logger.Debug("Dry run, not writing result",
			"target", res.Target.Key(),
			"match_type", res.MatchType,
			"confidence", res.Confidence,
		)
		return ApplyOutcome{Status: ApplyDryRun}
	}

	expect := expectedStates(opts)
	writes := 0
	for _, p := range res.Participants() {
		id, source := res.CounterpartOf(p)
		patch := store.Patch{
			State: candidate.StateReconciled,
			Link: &candidate.Link{
				CounterpartID:     id,
				CounterpartSource: source,
				MatchType:         res.MatchType,
				Confidence:        res.Confidence,
				LinkedAt:          opts.Now,
			},
			Confidence:   res.Confidence,
			Reason:       res.Reason,
			Timestamp:    opts.Now,
			RunID:        opts.RunID,
			ExpectStates: expect,
		}

		if err := a.store.Update(ctx, p.Source, p.ID, patch); err != nil {
			if errors.Is(err, store.ErrConflict) {
				a.logger.Warn("Record changed since it was read",
					"record", p.Key(),
					"target", res.Target.Key(),
					"writes", writes,
				)
				return ApplyOutcome{Status: ApplyConflict, Writes: writes, Err: err}
			}
			a.logger.Error("Failed to write reconciliation",
				"record", p.Key(),
				"target", res.Target.Key(),
				"writes", writes,
				"error", err,
			)
			return ApplyOutcome{
				Status: ApplyFailed,
				Writes: writes,
				Err:    &WriteError{Source: p.Source, ID: p.ID, Err: err},
			}
		}
		writes++
	}

	res.Applied = true
	return ApplyOutcome{Status: ApplyApplied, Writes: writes}
}

// applyReview flags the target only. Competing candidates stay untouched.
func (a *Applier) applyReview(ctx context.Context, res *matcher.MatchResult, opts ApplyOptions) ApplyOutcome {
	if !opts.MarkNeedsReview || opts.DryRun || res.Target.HasManualLink() {
		return ApplyOutcome{Status: ApplyReviewOnly}
	}

	patch := store.Patch{
		State:        candidate.StateNeedsReview,
		Confidence:   res.Confidence,
		Reason:       res.Reason,
		Timestamp:    opts.Now,
		RunID:        opts.RunID,
		ExpectStates: []candidate.State{candidate.StateUnreconciled, candidate.StateNeedsReview},
	}
	t := res.Target
	if err := a.store.Update(ctx, t.Source, t.ID, patch); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ApplyOutcome{Status: ApplyConflict, Err: err}
		}
		a.logger.Error("Failed to mark record for review", "record", t.Key(), "error", err)
		return ApplyOutcome{Status: ApplyFailed, Err: &WriteError{Source: t.Source, ID: t.ID, Err: err}}
	}

	res.Applied = true
	return ApplyOutcome{Status: ApplyReviewMarked, Writes: 1}
}

// expectedStates are the states a participant may be in when written.
// Without preservation a previous automatic link may be replaced.
func expectedStates(opts ApplyOptions) []candidate.State {
	if opts.PreserveReconciliation {
		return []candidate.State{candidate.StateUnreconciled, candidate.StateNeedsReview}
	}
	return []candidate.State{candidate.StateUnreconciled, candidate.StateNeedsReview, candidate.StateReconciled}
}
