package candidate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCandidate_SettlementAmount(t *testing.T) {
	t.Run("falls back to gross amount", func(t *testing.T) {
		c := &Candidate{Amount: decimal.RequireFromString("100.00")}
		assert.True(t, c.SettlementAmount().Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("prefers net amount", func(t *testing.T) {
		net := decimal.RequireFromString("97.10")
		c := &Candidate{Amount: decimal.RequireFromString("100.00"), NetAmount: &net}
		assert.True(t, c.SettlementAmount().Equal(net))
	})

	t.Run("magnitude is absolute", func(t *testing.T) {
		c := &Candidate{Amount: decimal.RequireFromString("-500.00")}
		assert.Equal(t, "500", c.Magnitude().String())
	})
}

func TestCandidate_Key(t *testing.T) {
	bank := &Candidate{ID: "123", Source: SourceBankLedger}
	inv := &Candidate{ID: "123", Source: SourceInvoice}

	assert.Equal(t, "bank_ledger:123", bank.Key())
	assert.NotEqual(t, bank.Key(), inv.Key())
}

func TestCandidate_HasManualLink(t *testing.T) {
	linked := &Link{CounterpartID: "inv-1", MatchType: MatchTypeAmountDate, LinkedAt: time.Now()}

	assert.False(t, (&Candidate{State: StateUnreconciled}).HasManualLink())
	assert.False(t, (&Candidate{State: StateReconciled, Link: linked}).HasManualLink())

	manual := *linked
	manual.Manual = true
	assert.True(t, (&Candidate{State: StateReconciled, Link: &manual}).HasManualLink())

	byType := *linked
	byType.MatchType = MatchTypeManual
	assert.True(t, (&Candidate{State: StateReconciled, Link: &byType}).HasManualLink())
}

func TestFlow_Compatible(t *testing.T) {
	tests := []struct {
		counterpart Flow
		target      Flow
		want        bool
	}{
		{FlowInflow, FlowInflow, true},
		{FlowInflow, FlowOutflow, false},
		{FlowEither, FlowOutflow, true},
		{FlowOutflow, FlowEither, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.counterpart)+"_"+string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counterpart.Compatible(tt.target))
		})
	}
}

func TestParseSource(t *testing.T) {
	src, ok := ParseSource("invoice")
	assert.True(t, ok)
	assert.Equal(t, SourceInvoice, src)

	_, ok = ParseSource("settlement_batch")
	assert.False(t, ok, "derived sources are not record sources")
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Source: SourceInvoice, Field: "id", Reason: "is missing"}
	assert.Equal(t, "invalid invoice record <unknown>: id is missing", err.Error())
}
