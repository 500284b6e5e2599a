package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
)

// errTooManyPages stops a store that never returns an empty page
var errTooManyPages = errors.New("page limit reached before an empty page")

// fetchAll pages through the store until an empty page. Every state is
// fetched so preserved records are counted. The window is padded so
// counterparts dated just outside it can still match.
func (o *Orchestrator) fetchAll(ctx context.Context, opts Options, padDays int) ([]store.RawRecord, error) {
	q := store.Query{
		Sources: opts.Sources,
		From:    opts.From.AddDate(0, 0, -padDays),
		To:      opts.To.AddDate(0, 0, padDays),
		Limit:   opts.PageSize,
	}

	o.logger.Debug("Fetching records",
		"sources", opts.Sources,
		"from", q.From.Format("2006-01-02"),
		"to", q.To.Format("2006-01-02"),
		"page_size", q.Limit,
	)

	var records []store.RawRecord
	for page := 0; ; page++ {
		q.Offset = len(records)
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			return records, &FetchError{Page: page, Offset: q.Offset, Err: errTooManyPages}
		}
		if err := ctx.Err(); err != nil {
			return records, &FetchError{Page: page, Offset: q.Offset, Err: err}
		}

		result, err := o.store.Query(ctx, q)
		if err != nil {
			return records, &FetchError{Page: page, Offset: q.Offset, Err: err}
		}
		if len(result.Records) == 0 {
			break
		}
		records = append(records, result.Records...)
	}

	o.logger.Debug("Fetched records", "count", len(records))
	return records, nil
}

// fetchPadding is the widest date distance any strategy accepts
func fetchPadding(cfg matcher.Config) int {
	pad := cfg.Subset.ExtendedWindowDays
	for _, w := range append([]int{cfg.FuzzyWindowDays, cfg.SettlementWindowDays}, cfg.DateWindows...) {
		pad = max(pad, w)
	}
	for _, w := range cfg.SourceWindows {
		pad = max(pad, w)
	}
	return pad
}

// dayOf truncates t to its UTC calendar day
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
