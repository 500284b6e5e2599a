package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var applyNow = time.Date(2025, 4, 1, 6, 0, 0, 0, time.UTC)

func cand(source candidate.Source, id, amount string) *candidate.Candidate {
	return &candidate.Candidate{
		ID:     id,
		Source: source,
		Date:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString(amount),
		State:  candidate.StateUnreconciled,
	}
}

func matched(target *candidate.Candidate, mt candidate.MatchType, members ...*candidate.Candidate) *matcher.MatchResult {
	return &matcher.MatchResult{
		Target:     target,
		Members:    members,
		MatchType:  mt,
		Confidence: 88,
		Outcome:    matcher.OutcomeMatched,
		Reason:     "test",
	}
}

func TestApplier_SingleMatchLinksBothSides(t *testing.T) {
	// Arrange
	st := new(mockStore)
	st.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	applier := NewApplier(st, discardLogger())

	bank := cand(candidate.SourceBankLedger, "b-1", "-500.00")
	inv := cand(candidate.SourceInvoice, "INV-1", "500.00")
	res := matched(bank, candidate.MatchTypeAmountDate, inv)

	// Act
	out := applier.Apply(context.Background(), res, ApplyOptions{PreserveReconciliation: true, RunID: "run-1", Now: applyNow})

	// Assert
	assert.Equal(t, ApplyApplied, out.Status)
	assert.Equal(t, 2, out.Writes)
	assert.True(t, res.Applied)

	patches := st.patches()
	bankPatch := patches["bank_ledger:b-1"]
	assert.Equal(t, candidate.StateReconciled, bankPatch.State)
	assert.Equal(t, "INV-1", bankPatch.Link.CounterpartID)
	assert.Equal(t, candidate.SourceInvoice, bankPatch.Link.CounterpartSource)
	assert.Equal(t, "run-1", bankPatch.RunID)
	assert.Equal(t, applyNow, bankPatch.Timestamp)
	assert.ElementsMatch(t,
		[]candidate.State{candidate.StateUnreconciled, candidate.StateNeedsReview},
		bankPatch.ExpectStates)

	invPatch := patches["invoice:INV-1"]
	assert.Equal(t, "b-1", invPatch.Link.CounterpartID)
	assert.Equal(t, candidate.SourceBankLedger, invPatch.Link.CounterpartSource)
	assert.Equal(t, candidate.MatchTypeAmountDate, invPatch.Link.MatchType)
}

func TestApplier_PairLinksTargetToCombination(t *testing.T) {
	st := new(mockStore)
	st.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	applier := NewApplier(st, discardLogger())

	bank := cand(candidate.SourceBankLedger, "b-1", "1245.67")
	a := cand(candidate.SourceInvoice, "INV-A", "745.67")
	b := cand(candidate.SourceInvoice, "INV-B", "500.00")
	res := matched(bank, candidate.MatchTypeSubsetSum, a, b)

	out := applier.Apply(context.Background(), res, ApplyOptions{Now: applyNow})
	require.Equal(t, ApplyApplied, out.Status)
	assert.Equal(t, 3, out.Writes)

	patches := st.patches()
	assert.Equal(t, "combo:invoice:INV-A+invoice:INV-B", patches["bank_ledger:b-1"].Link.CounterpartID)
	assert.Equal(t, candidate.SourceCombination, patches["bank_ledger:b-1"].Link.CounterpartSource)
	assert.Equal(t, "b-1", patches["invoice:INV-A"].Link.CounterpartID)
	assert.Equal(t, "b-1", patches["invoice:INV-B"].Link.CounterpartID)
}

func TestApplier_BatchLinksEveryoneToBatch(t *testing.T) {
	st := new(mockStore)
	st.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	applier := NewApplier(st, discardLogger())

	bank := cand(candidate.SourceBankLedger, "b-1", "290.00")
	m1 := cand(candidate.SourceGatewayTransaction, "ch_1", "100.00")
	m2 := cand(candidate.SourceGatewayTransaction, "ch_2", "200.00")
	res := matched(bank, candidate.MatchTypeSettlement, m1, m2)
	res.Batch = &settlement.Batch{ID: "po_9", Members: res.Members}

	out := applier.Apply(context.Background(), res, ApplyOptions{Now: applyNow})
	require.Equal(t, ApplyApplied, out.Status)

	for key, p := range st.patches() {
		assert.Equal(t, "po_9", p.Link.CounterpartID, key)
		assert.Equal(t, candidate.SourceSettlementBatch, p.Link.CounterpartSource, key)
	}
}

func TestApplier_DryRunWritesNothing(t *testing.T) {
	st := new(mockStore)
	applier := NewApplier(st, discardLogger())

	res := matched(cand(candidate.SourceBankLedger, "b-1", "10.00"), candidate.MatchTypeAmountDate,
		cand(candidate.SourceInvoice, "INV-1", "10.00"))

	out := applier.Apply(context.Background(), res, ApplyOptions{DryRun: true})

	assert.Equal(t, ApplyDryRun, out.Status)
	assert.False(t, res.Applied)
	st.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplier_PreservesReconciledParticipants(t *testing.T) {
	tests := []struct {
		name     string
		preserve bool
		member   func(*candidate.Candidate)
		want     ApplyStatus
	}{
		{
			name:     "reconciled member with preservation",
			preserve: true,
			member:   func(c *candidate.Candidate) { c.State = candidate.StateReconciled },
			want:     ApplyPreserved,
		},
		{
			name:     "reconciled member without preservation",
			preserve: false,
			member:   func(c *candidate.Candidate) { c.State = candidate.StateReconciled },
			want:     ApplyApplied,
		},
		{
			name:     "manual link is always preserved",
			preserve: false,
			member: func(c *candidate.Candidate) {
				c.State = candidate.StateReconciled
				c.Link = &candidate.Link{CounterpartID: "x", MatchType: candidate.MatchTypeManual, Manual: true}
			},
			want: ApplyPreserved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := new(mockStore)
			st.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			applier := NewApplier(st, discardLogger())

			member := cand(candidate.SourceInvoice, "INV-1", "10.00")
			tt.member(member)
			res := matched(cand(candidate.SourceBankLedger, "b-1", "10.00"), candidate.MatchTypeAmountDate, member)

			out := applier.Apply(context.Background(), res, ApplyOptions{PreserveReconciliation: tt.preserve, Now: applyNow})

			assert.Equal(t, tt.want, out.Status)
			if tt.want == ApplyPreserved {
				st.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestApplier_WriteFailureStopsResult(t *testing.T) {
	// Arrange
	st := new(mockStore)
	st.On("Update", mock.Anything, candidate.SourceBankLedger, "b-1", mock.Anything).Return(nil)
	st.On("Update", mock.Anything, candidate.SourceInvoice, "INV-A", mock.Anything).Return(errors.New("disk full"))
	applier := NewApplier(st, discardLogger())

	res := matched(cand(candidate.SourceBankLedger, "b-1", "30.00"), candidate.MatchTypeSubsetSum,
		cand(candidate.SourceInvoice, "INV-A", "10.00"),
		cand(candidate.SourceInvoice, "INV-B", "20.00"))

	// Act
	out := applier.Apply(context.Background(), res, ApplyOptions{Now: applyNow})

	// Assert
	assert.Equal(t, ApplyFailed, out.Status)
	assert.Equal(t, 1, out.Writes)
	assert.False(t, res.Applied)

	var writeErr *WriteError
	require.ErrorAs(t, out.Err, &writeErr)
	assert.Equal(t, "INV-A", writeErr.ID)
	assert.Equal(t, candidate.SourceInvoice, writeErr.Source)
	st.AssertNotCalled(t, "Update", mock.Anything, candidate.SourceInvoice, "INV-B", mock.Anything)
}

func TestApplier_ConflictIsReported(t *testing.T) {
	st := new(mockStore)
	st.On("Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fmt.Errorf("b-1 is reconciled: %w", store.ErrConflict))
	applier := NewApplier(st, discardLogger())

	res := matched(cand(candidate.SourceBankLedger, "b-1", "10.00"), candidate.MatchTypeAmountDate,
		cand(candidate.SourceInvoice, "INV-1", "10.00"))

	out := applier.Apply(context.Background(), res, ApplyOptions{Now: applyNow})

	assert.Equal(t, ApplyConflict, out.Status)
	assert.ErrorIs(t, out.Err, store.ErrConflict)
}

func TestApplier_NeedsReview(t *testing.T) {
	review := func() *matcher.MatchResult {
		return &matcher.MatchResult{
			Target:    cand(candidate.SourceBankLedger, "b-1", "10.00"),
			Members:   []*candidate.Candidate{cand(candidate.SourceInvoice, "INV-1", "10.00"), cand(candidate.SourceInvoice, "INV-2", "10.00")},
			MatchType: candidate.MatchTypeExtendedWindow,
			Outcome:   matcher.OutcomeNeedsReview,
			Reason:    "2 candidates match",
			Err:       matcher.ErrAmbiguousMatch,
		}
	}

	t.Run("nothing written by default", func(t *testing.T) {
		st := new(mockStore)
		out := NewApplier(st, discardLogger()).Apply(context.Background(), review(), ApplyOptions{Now: applyNow})

		assert.Equal(t, ApplyReviewOnly, out.Status)
		st.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("only the target is marked", func(t *testing.T) {
		st := new(mockStore)
		st.On("Update", mock.Anything, candidate.SourceBankLedger, "b-1", mock.Anything).Return(nil)

		out := NewApplier(st, discardLogger()).Apply(context.Background(), review(), ApplyOptions{MarkNeedsReview: true, Now: applyNow})

		assert.Equal(t, ApplyReviewMarked, out.Status)
		patches := st.patches()
		require.Len(t, patches, 1)
		p := patches["bank_ledger:b-1"]
		assert.Equal(t, candidate.StateNeedsReview, p.State)
		assert.Equal(t, "2 candidates match", p.Reason)
		assert.Nil(t, p.Link)
	})

	t.Run("dry run never marks", func(t *testing.T) {
		st := new(mockStore)
		out := NewApplier(st, discardLogger()).Apply(context.Background(), review(), ApplyOptions{MarkNeedsReview: true, DryRun: true})

		assert.Equal(t, ApplyReviewOnly, out.Status)
		st.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
