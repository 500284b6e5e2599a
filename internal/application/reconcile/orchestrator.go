package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/normalizer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxSampleErrors bounds the validation and write error samples
const maxSampleErrors = 50

// Run executes one reconciliation run
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	opts = o.withDefaults(opts)
	engine := o.engineFor(opts)

	summary := &Summary{
		RunID:             uuid.NewString(),
		DryRun:            opts.DryRun,
		Sources:           opts.Sources,
		From:              opts.From,
		To:                opts.To,
		StartedAt:         o.now(),
		Status:            StatusRunning,
		ByMatchType:       make(map[candidate.MatchType]int),
		TotalValueMatched: decimal.Zero,
	}

	o.logger.Info("Starting reconciliation run",
		"run_id", summary.RunID,
		"dry_run", opts.DryRun,
		"from", opts.From.Format("2006-01-02"),
		"to", opts.To.Format("2006-01-02"),
		"sources", opts.Sources,
	)
	o.logger.Debug("Run configuration",
		"currency", opts.Currency,
		"threshold", engine.Config().Threshold,
		"preserve_reconciliation", opts.PreserveReconciliation,
		"mark_needs_review", opts.MarkNeedsReview,
		"page_size", opts.PageSize,
	)

	o.startRun(summary)

	raws, err := o.fetchAll(ctx, opts, fetchPadding(engine.Config()))
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			o.logger.Error("Aborting run, fetch failed",
				"run_id", summary.RunID,
				"page", fetchErr.Page,
				"offset", fetchErr.Offset,
				"error", fetchErr.Err,
			)
		}
		summary.CandidatesScanned = len(raws)
		summary.Status = StatusFailed
		summary.Error = err.Error()
		o.finish(summary)
		return summary, err
	}
	summary.CandidatesScanned = len(raws)

	targets, counterparts := o.prepare(raws, opts, summary)
	summary.Targets = len(targets)
	summary.Counterparts = len(counterparts)

	grouped := o.aggregator.Aggregate(counterparts)
	summary.UnresolvedBatches = grouped.Unresolved
	for _, u := range grouped.Unresolved {
		o.logger.Warn("Settlement batch left out of matching",
			"batch_id", u.ID,
			"reason", u.Reason,
			"members", u.Members,
		)
	}

	rc := matcher.NewRunContext()
	results := engine.Match(rc, targets, matcher.NewPool(counterparts, grouped.Batches))

	o.applyAll(ctx, results, opts, summary)

	resolved := make(map[string]bool, len(results))
	for _, r := range results {
		resolved[r.Target.Key()] = true
	}
	for _, t := range targets {
		if !resolved[t.Key()] {
			summary.Unmatched++
		}
	}

	summary.Status = StatusCompleted
	if summary.Errors > 0 || summary.Conflicts > 0 {
		summary.Status = StatusCompletedWithErrors
	}

	o.recordResults(summary, results)
	o.finish(summary)

	o.logger.Info("Reconciliation run complete",
		"run_id", summary.RunID,
		"status", summary.Status,
		"scanned", summary.CandidatesScanned,
		"matched", summary.Matched,
		"needs_review", summary.NeedsReview,
		"skipped", summary.Skipped(),
		"unmatched", summary.Unmatched,
		"errors", summary.Errors,
		"total_value_matched", summary.TotalValueMatched.StringFixed(2),
	)

	return summary, nil
}

// withDefaults fills unset options
func (o *Orchestrator) withDefaults(opts Options) Options {
	def := DefaultOptions()
	if len(opts.Sources) == 0 {
		opts.Sources = def.Sources
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = def.LookbackDays
	}
	if opts.To.IsZero() {
		opts.To = o.now()
	}
	opts.To = dayOf(opts.To)
	if opts.From.IsZero() {
		opts.From = opts.To.AddDate(0, 0, -opts.LookbackDays)
	}
	opts.From = dayOf(opts.From)
	opts.Currency = strings.ToUpper(strings.TrimSpace(opts.Currency))
	if opts.SampleSize < 0 {
		opts.SampleSize = 0
	}
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = def.MaxPages
	}
	return opts
}

// engineFor returns the engine, rebuilt when the run overrides the threshold
func (o *Orchestrator) engineFor(opts Options) *matcher.Engine {
	cfg := o.engine.Config()
	if opts.Threshold <= 0 || opts.Threshold == cfg.Threshold {
		return o.engine
	}
	cfg.Threshold = opts.Threshold
	return matcher.NewEngine(cfg, o.logger)
}

// prepare normalizes records and splits them into bank entries inside the
// requested window and everything else
func (o *Orchestrator) prepare(raws []store.RawRecord, opts Options, summary *Summary) (targets, counterparts []*candidate.Candidate) {
	norm := normalizer.New(opts.Currency)

	for _, raw := range raws {
		c, err := norm.Normalize(raw)
		if err != nil {
			summary.SkippedInvalid++
			if len(summary.ValidationErrors) < maxSampleErrors {
				summary.ValidationErrors = append(summary.ValidationErrors, err.Error())
			}
			o.logger.Warn("Skipping invalid record", "source", raw.Source, "error", err)
			continue
		}

		if c.HasManualLink() || (opts.PreserveReconciliation && c.IsReconciled()) {
			summary.SkippedPreserved++
			o.logger.Debug("Skipping preserved record", "record", c.Key(), "state", c.State)
			continue
		}

		if opts.Currency != "" && c.Currency != "" && c.Currency != opts.Currency {
			summary.SkippedCurrency++
			o.logger.Debug("Skipping record in other currency", "record", c.Key(), "currency", c.Currency)
			continue
		}

		if c.Source == candidate.SourceBankLedger {
			if c.Date.Before(opts.From) || c.Date.After(opts.To) {
				continue
			}
			targets = append(targets, c)
			continue
		}
		counterparts = append(counterparts, c)
	}

	o.metrics.CandidatesSkipped("invalid", summary.SkippedInvalid)
	o.metrics.CandidatesSkipped("preserved", summary.SkippedPreserved)
	o.metrics.CandidatesSkipped("currency", summary.SkippedCurrency)

	o.logger.Debug("Prepared candidates",
		"targets", len(targets),
		"counterparts", len(counterparts),
		"invalid", summary.SkippedInvalid,
		"preserved", summary.SkippedPreserved,
		"other_currency", summary.SkippedCurrency,
	)
	return targets, counterparts
}

// applyAll writes results in order and folds each outcome into the summary
func (o *Orchestrator) applyAll(ctx context.Context, results []*matcher.MatchResult, opts Options, summary *Summary) {
	applyOpts := ApplyOptions{
		DryRun:                 opts.DryRun,
		PreserveReconciliation: opts.PreserveReconciliation,
		MarkNeedsReview:        opts.MarkNeedsReview,
		RunID:                  summary.RunID,
		Now:                    o.now(),
	}

	for _, res := range results {
		out := o.applier.Apply(ctx, res, applyOpts)

		switch out.Status {
		case ApplyApplied, ApplyDryRun:
			summary.Matched++
			summary.ByMatchType[res.MatchType]++
			summary.TotalValueMatched = summary.TotalValueMatched.Add(res.TotalValue())
			o.metrics.ValueMatched(res.TotalValue().InexactFloat64())
		case ApplyReviewMarked, ApplyReviewOnly:
			summary.NeedsReview++
		case ApplyPreserved:
			summary.SkippedPreserved++
			o.metrics.CandidatesSkipped("preserved", 1)
		case ApplyConflict:
			summary.Conflicts++
			o.metrics.CandidatesSkipped("conflict", 1)
		case ApplyFailed:
			summary.Errors++
			o.metrics.WriteFailed()
			if len(summary.WriteErrors) < maxSampleErrors {
				summary.WriteErrors = append(summary.WriteErrors, out.Err.Error())
			}
			if res.Outcome == matcher.OutcomeNeedsReview {
				summary.NeedsReview++
			}
		}
		o.metrics.MatchRecorded(string(res.MatchType), string(res.Outcome))

		if len(summary.SampleMatches) < opts.SampleSize && out.Status != ApplyPreserved {
			summary.SampleMatches = append(summary.SampleMatches, res)
		}
	}
}

// finish stamps the completion time, persists the run and reports metrics
func (o *Orchestrator) finish(summary *Summary) {
	summary.CompletedAt = o.now()
	o.completeRun(summary)
	o.metrics.RunCompleted(summary.DryRun, summary.Status, summary.CompletedAt.Sub(summary.StartedAt))
}

// String renders a one-line description of the summary
func (s *Summary) String() string {
	return fmt.Sprintf("run %s: %s, %d scanned, %d matched, %d needs review, %d skipped, %d unmatched, %d errors",
		s.RunID, s.Status, s.CandidatesScanned, s.Matched, s.NeedsReview, s.Skipped(), s.Unmatched, s.Errors)
}
