package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/settlement"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

func TestPrintSummary_Problems(t *testing.T) {
	var out bytes.Buffer
	summary := &reconcile.Summary{
		RunID:             "r-1",
		Status:            reconcile.StatusFailed,
		From:              time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:                time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		ByMatchType:       map[candidate.MatchType]int{candidate.MatchTypeSettlement: 1, candidate.MatchTypeAmountDate: 2},
		TotalValueMatched: decimal.RequireFromString("10.5"),
		UnresolvedBatches: []settlement.Unresolved{{ID: "po_1", Reason: "mixed_currency", Members: 3}},
		ValidationErrors:  []string{"bank_ledger b-9: amount is missing"},
		Error:             "failed to fetch page 2 (offset 200): timeout",
	}

	PrintSummary(&out, summary)

	text := out.String()
	assert.Contains(t, text, "Run r-1  failed  2025-03-01 .. 2025-03-31")
	assert.Contains(t, text, "By type: amount_date=2 settlement=1")
	assert.Contains(t, text, "Value matched: 10.50")
	assert.Contains(t, text, "po_1 (3 members): mixed_currency")
	assert.Contains(t, text, "amount is missing")
	assert.Contains(t, text, "Run failed: failed to fetch page 2")
}

func TestPrintRuns(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		PrintRuns(&out, nil)
		assert.Equal(t, "No runs recorded.\n", out.String())
	})

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		PrintRuns(&out, []storage.RunRecord{{
			ID:                "r-1",
			StartedAt:         time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC),
			DryRun:            true,
			Status:            reconcile.StatusCompleted,
			Matched:           2,
			TotalValueMatched: "620.00",
		}})
		assert.Contains(t, out.String(), "ID")
		assert.Contains(t, out.String(), "2025-04-01 06:00")
		assert.Contains(t, out.String(), "620.00")
	})
}
