package matcher

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func march(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func flowOf(amount decimal.Decimal) candidate.Flow {
	switch amount.Sign() {
	case 1:
		return candidate.FlowInflow
	case -1:
		return candidate.FlowOutflow
	}
	return candidate.FlowEither
}

// Helper to create a bank ledger entry
func bankEntry(id, amount string, date time.Time) *candidate.Candidate {
	a := decimal.RequireFromString(amount)
	return &candidate.Candidate{
		ID:       id,
		Source:   candidate.SourceBankLedger,
		Date:     date,
		Amount:   a,
		Currency: "EUR",
		Flow:     flowOf(a),
		State:    candidate.StateUnreconciled,
	}
}

func makeInvoice(id, amount string, date time.Time) *candidate.Candidate {
	return &candidate.Candidate{
		ID:         id,
		Source:     candidate.SourceInvoice,
		Date:       date,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "EUR",
		Flow:       candidate.FlowEither,
		References: []string{id},
		State:      candidate.StateUnreconciled,
	}
}

func makeGatewayTx(id, net string, date time.Time, batch string) *candidate.Candidate {
	n := decimal.RequireFromString(net)
	return &candidate.Candidate{
		ID:        id,
		Source:    candidate.SourceGatewayTransaction,
		Date:      date,
		Amount:    n.Mul(decimal.RequireFromString("1.03")).Round(2),
		NetAmount: &n,
		Currency:  "EUR",
		GroupKey:  batch,
		Flow:      flowOf(n),
		State:     candidate.StateUnreconciled,
	}
}

func withIdentity(c *candidate.Candidate, email, name string) *candidate.Candidate {
	c.Identity = &candidate.Identity{Email: email, Name: name}
	return c
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func runEngine(e *Engine, targets, counterparts []*candidate.Candidate) []*MatchResult {
	batches := settlement.NewAggregator().Aggregate(counterparts).Batches
	return e.Match(NewRunContext(), targets, NewPool(counterparts, batches))
}

func TestEngine_ExactReferenceIgnoresAmountAndDate(t *testing.T) {
	// Arrange
	bank := bankEntry("BNK-1", "100.00", march(10))
	bank.References = []string{"ORD-88231"}
	tx := makeGatewayTx("ch_1", "999.00", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "")
	tx.References = []string{"ORD-88231"}

	// Act
	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{tx})

	// Assert
	require.Len(t, results, 1)
	assert.Equal(t, candidate.MatchTypeExactReference, results[0].MatchType)
	assert.Equal(t, 100.0, results[0].Confidence)
	assert.Equal(t, []string{"ch_1"}, results[0].CounterpartIDs())
	assert.Equal(t, OutcomeMatched, results[0].Outcome)
}

func TestEngine_ExactReferenceOnCounterpartID(t *testing.T) {
	bank := bankEntry("BNK-1", "-42.00", march(10))
	bank.References = []string{"INV-2025-0042"}
	inv := makeInvoice("INV-2025-0042", "480.00", march(1))

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{inv})

	require.Len(t, results, 1)
	assert.Equal(t, candidate.MatchTypeExactReference, results[0].MatchType)
}

func TestEngine_ShortIDsAreNotReferences(t *testing.T) {
	bank := bankEntry("101", "10.00", march(10))
	inv := makeInvoice("101", "900.00", march(10))

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{inv})

	assert.Empty(t, results)
}

func TestEngine_DateOutsideWindowIsVetoed(t *testing.T) {
	// Perfect amount and identity, but far outside every window
	bank := withIdentity(bankEntry("BNK-1", "250.00", march(10)), "ana.silva@x.com", "Ana Silva")
	inv := withIdentity(makeInvoice("INV-1", "250.00", march(10).AddDate(0, 0, 30)), "ana.silva@x.com", "Ana Silva")

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{inv})

	assert.Empty(t, results)
}

func TestEngine_InvoiceScenario_OnlyNearCandidateEligible(t *testing.T) {
	// Arrange
	bank := bankEntry("BNK-1", "-500.00", march(10))
	near := makeInvoice("INV-NEAR", "500.00", march(11))
	far := makeInvoice("INV-FAR", "500.00", march(20))

	// Act
	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{far, near})

	// Assert
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, candidate.MatchTypeAmountDate, res.MatchType)
	assert.Equal(t, []string{"INV-NEAR"}, res.CounterpartIDs())
	assert.Equal(t, 1, res.Signals.DateDelta)
	assert.Equal(t, 7, res.Signals.WindowDays)
	assert.True(t, res.Signals.SoleCandidate)
	assert.InDelta(t, 73.57, res.Confidence, 0.001, "18.57 date + 15 amount + 40 sole")
}

func TestEngine_PairScenario(t *testing.T) {
	bank := bankEntry("BNK-1", "1245.67", march(10))
	counterparts := []*candidate.Candidate{
		makeGatewayTx("tx-a", "845.67", march(9), ""),
		makeGatewayTx("tx-b", "400.00", march(10), ""),
	}

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, counterparts)

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, candidate.MatchTypeSubsetSum, res.MatchType)
	assert.ElementsMatch(t, []string{"tx-a", "tx-b"}, res.CounterpartIDs())
	assert.True(t, res.Signals.AmountDelta.IsZero())

	id, source := res.CounterpartOf(bank)
	assert.Equal(t, candidate.SourceCombination, source)
	assert.Equal(t, "combo:gateway_transaction:tx-a+gateway_transaction:tx-b", id)

	id, source = res.CounterpartOf(counterparts[0])
	assert.Equal(t, "BNK-1", id)
	assert.Equal(t, candidate.SourceBankLedger, source)
}

func TestEngine_SettlementAggregation(t *testing.T) {
	// Arrange
	members := []*candidate.Candidate{
		makeGatewayTx("tx-1", "120.00", march(5), "po_2025-03-09"),
		makeGatewayTx("tx-2", "230.50", march(6), "po_2025-03-09"),
		makeGatewayTx("tx-3", "149.45", march(7), "po_2025-03-09"),
	}
	bank := bankEntry("BNK-1", "500.05", march(11))

	// Act
	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, members)

	// Assert
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, candidate.MatchTypeSettlement, res.MatchType)
	assert.Equal(t, "po_2025-03-09", res.BatchID())
	assert.Equal(t, []string{"tx-1", "tx-2", "tx-3"}, res.CounterpartIDs())
	assert.Equal(t, 2, res.Signals.DateDelta)

	for _, p := range res.Participants() {
		id, source := res.CounterpartOf(p)
		assert.Equal(t, "po_2025-03-09", id)
		assert.Equal(t, candidate.SourceSettlementBatch, source)
	}
}

func TestEngine_SettlementOutsideTolerance(t *testing.T) {
	members := []*candidate.Candidate{
		makeGatewayTx("tx-1", "250.00", march(5), "po_2025-03-09"),
		makeGatewayTx("tx-2", "250.00", march(6), "po_2025-03-09"),
	}

	t.Run("amount", func(t *testing.T) {
		results := runEngine(newTestEngine(), []*candidate.Candidate{bankEntry("BNK-1", "500.20", march(9))}, members)
		for _, r := range results {
			assert.NotEqual(t, candidate.MatchTypeSettlement, r.MatchType)
		}
	})

	t.Run("date", func(t *testing.T) {
		results := runEngine(newTestEngine(), []*candidate.Candidate{bankEntry("BNK-1", "500.00", march(13))}, members)
		for _, r := range results {
			assert.NotEqual(t, candidate.MatchTypeSettlement, r.MatchType)
		}
	})
}

func TestEngine_FuzzyIdentityBreaksTie(t *testing.T) {
	bank := withIdentity(bankEntry("BNK-1", "500.00", march(10)), "", "SILVA ANA")
	ana := withIdentity(makeInvoice("INV-A", "500.00", march(10)), "ana@x.com", "Ana Silva")
	peter := withIdentity(makeInvoice("INV-P", "500.00", march(10)), "peter@y.com", "Peter Jones")

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{peter, ana})

	require.Len(t, results, 1)
	assert.Equal(t, candidate.MatchTypeFuzzyIdentity, results[0].MatchType)
	assert.Equal(t, OutcomeMatched, results[0].Outcome)
	assert.Equal(t, []string{"INV-A"}, results[0].CounterpartIDs())
	assert.GreaterOrEqual(t, results[0].Confidence, 70.0)
}

func TestEngine_FuzzyIdentityAmbiguous(t *testing.T) {
	bank := withIdentity(bankEntry("BNK-1", "500.00", march(10)), "ana.silva@x.com", "Ana Silva")
	first := withIdentity(makeInvoice("INV-1", "500.00", march(10)), "ana.silva@x.com", "Ana Silva")
	second := withIdentity(makeInvoice("INV-2", "500.00", march(10)), "ana.silva@x.com", "Ana Silva")

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{first, second})

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, OutcomeNeedsReview, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrAmbiguousMatch)
	assert.ElementsMatch(t, []string{"INV-1", "INV-2"}, res.CounterpartIDs())
}

func TestEngine_AmbiguousWithoutIdentityNeedsReview(t *testing.T) {
	bank := bankEntry("BNK-1", "-500.00", march(10))
	first := makeInvoice("INV-1", "500.00", march(11))
	second := makeInvoice("INV-2", "500.00", march(11))

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{first, second})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeNeedsReview, results[0].Outcome)
	assert.Equal(t, candidate.MatchTypeExtendedWindow, results[0].MatchType)
	assert.ErrorIs(t, results[0].Err, ErrAmbiguousMatch)
}

func TestEngine_NoDoubleClaim(t *testing.T) {
	// Arrange
	targets := []*candidate.Candidate{
		bankEntry("BNK-1", "100.00", march(10)),
		bankEntry("BNK-2", "100.00", march(10)),
		bankEntry("BNK-3", "200.00", march(10)),
	}
	counterparts := []*candidate.Candidate{
		makeInvoice("INV-1", "100.00", march(10)),
		makeInvoice("INV-2", "100.00", march(12)),
	}

	// Act
	results := runEngine(newTestEngine(), targets, counterparts)

	// Assert
	seen := make(map[string]bool)
	for _, res := range results {
		if res.Outcome != OutcomeMatched {
			continue
		}
		for _, m := range res.Members {
			assert.False(t, seen[m.Key()], "counterpart %s claimed twice", m.ID)
			seen[m.Key()] = true
		}
	}
	assert.NotEmpty(t, seen)
}

func TestEngine_HigherPriorityClaimsFirst(t *testing.T) {
	// BNK-1 sorts first and would take INV-00042 by amount and date, but the
	// reference match for BNK-2 runs before any window matching.
	early := bankEntry("BNK-1", "100.00", march(10))
	late := bankEntry("BNK-2", "100.00", march(12))
	late.References = []string{"INV-00042"}
	inv := makeInvoice("INV-00042", "100.00", march(10))

	results := runEngine(newTestEngine(), []*candidate.Candidate{early, late}, []*candidate.Candidate{inv})

	require.Len(t, results, 1)
	assert.Equal(t, "BNK-2", results[0].Target.ID)
	assert.Equal(t, candidate.MatchTypeExactReference, results[0].MatchType)
}

func TestEngine_DirectionMustAgree(t *testing.T) {
	bank := bankEntry("BNK-1", "500.00", march(10))
	payable := makeInvoice("BILL-1", "500.00", march(10))
	payable.Flow = candidate.FlowOutflow

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{payable})

	assert.Empty(t, results)
}

func TestEngine_SourceWindowCap(t *testing.T) {
	// Payouts only match within 2 days even though invoices allow 7
	bank := bankEntry("BNK-1", "300.00", march(10))
	payout := &candidate.Candidate{
		ID:       "po_1",
		Source:   candidate.SourceGatewayPayout,
		Date:     march(15),
		Amount:   decimal.RequireFromString("300.00"),
		Currency: "EUR",
		Flow:     candidate.FlowInflow,
	}

	results := runEngine(newTestEngine(), []*candidate.Candidate{bank}, []*candidate.Candidate{payout})

	require.Len(t, results, 1)
	assert.Equal(t, candidate.MatchTypeExtendedWindow, results[0].MatchType, "only the subset-sum retry reaches 5 days")
}

func TestRunContext_ClaimIsAllOrNothing(t *testing.T) {
	rc := NewRunContext()

	require.True(t, rc.Claim(candidate.MatchTypeAmountDate, "a", "b"))
	assert.False(t, rc.Claim(candidate.MatchTypeSubsetSum, "c", "b"))
	assert.False(t, rc.IsClaimed("c"))
	assert.Equal(t, 2, rc.Len())

	mt, ok := rc.ClaimedBy("a")
	assert.True(t, ok)
	assert.Equal(t, candidate.MatchTypeAmountDate, mt)
}
