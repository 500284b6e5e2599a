package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(source candidate.Source, fields map[string]any) store.RawRecord {
	return store.RawRecord{Source: source, Fields: fields}
}

func TestNormalize_BankLedger(t *testing.T) {
	// Arrange
	n := New("eur")
	rec := raw(candidate.SourceBankLedger, map[string]any{
		"entry_id":          "BNK-001",
		"booking_date":      "2025-03-10",
		"amount":            "1,245.67",
		"counterparty_name": "Ana Silva",
		"remittance_info":   "Payment ORD-88231 thanks",
	})

	// Act
	c, err := n.Normalize(rec)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "BNK-001", c.ID)
	assert.Equal(t, candidate.SourceBankLedger, c.Source)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), c.Date)
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("1245.67")))
	assert.Equal(t, "EUR", c.Currency)
	assert.Equal(t, candidate.FlowInflow, c.Flow)
	assert.Equal(t, candidate.StateUnreconciled, c.State)
	require.NotNil(t, c.Identity)
	assert.Equal(t, "Ana Silva", c.Identity.Name)
	assert.Contains(t, c.References, "ORD-88231")
	assert.NotContains(t, c.References, "THANKS")
	assert.Empty(t, c.GroupKey)
}

func TestNormalize_GatewayTransaction(t *testing.T) {
	n := New("EUR")
	rec := raw(candidate.SourceGatewayTransaction, map[string]any{
		"transaction_id":      "ch_1",
		"created_at":          "2025-03-07T14:22:00Z",
		"gross_amount":        100.00,
		"net_amount":          "97.10",
		"settlement_batch_id": "po_2025-03-09",
		"settlement_date":     "2025-03-09",
		"customer_email":      "Ana.Silva@X.com",
		"currency":            "eur",
	})

	c, err := n.Normalize(rec)

	require.NoError(t, err)
	assert.Equal(t, "po_2025-03-09", c.GroupKey)
	require.NotNil(t, c.NetAmount)
	assert.Equal(t, "97.1", c.NetAmount.String())
	assert.Equal(t, "97.1", c.SettlementAmount().String())
	require.NotNil(t, c.SettlementDate)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), *c.SettlementDate)
	assert.Equal(t, "ana.silva@x.com", c.Identity.Email)
	assert.Equal(t, candidate.FlowInflow, c.Flow)
}

func TestNormalize_NetAmountPriority(t *testing.T) {
	n := New("EUR")
	rec := raw(candidate.SourceGatewayTransaction, map[string]any{
		"transaction_id":    "ch_2",
		"date":              "2025-03-07",
		"amount":            "50.00",
		"settlement_amount": "48.20",
		"net_amount":        "48.50",
	})

	c, err := n.Normalize(rec)

	require.NoError(t, err)
	assert.Equal(t, "48.2", c.SettlementAmount().String(), "settlement_amount is more specific than net_amount")
}

func TestNormalize_MinorUnits(t *testing.T) {
	n := New("EUR")
	rec := raw(candidate.SourceGatewayPayout, map[string]any{
		"payout_id":    "po_1",
		"arrival_date": json.Number("1741564800"),
		"amount_minor": 124567,
	})

	c, err := n.Normalize(rec)

	require.NoError(t, err)
	assert.Equal(t, "1245.67", c.Amount.String())
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), c.Date)
}

func TestNormalize_InvoiceDirection(t *testing.T) {
	n := New("EUR")

	tests := []struct {
		name      string
		direction any
		want      candidate.Flow
	}{
		{"payable", "payable", candidate.FlowOutflow},
		{"receivable", "Receivable", candidate.FlowInflow},
		{"unknown", nil, candidate.FlowEither},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]any{
				"invoice_id": "INV-1",
				"due_date":   "2025-03-01",
				"amount_due": "500.00",
			}
			if tt.direction != nil {
				fields["invoice_type"] = tt.direction
			}

			c, err := n.Normalize(raw(candidate.SourceInvoice, fields))

			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Flow)
			assert.Contains(t, c.References, "INV-1", "id field doubles as reference")
		})
	}
}

func TestNormalize_ValidationErrors(t *testing.T) {
	n := New("EUR")

	tests := []struct {
		name   string
		source candidate.Source
		fields map[string]any
		field  string
	}{
		{"missing id", candidate.SourceBankLedger, map[string]any{"date": "2025-03-10", "amount": "1"}, "id"},
		{"blank id", candidate.SourceBankLedger, map[string]any{"entry_id": "  ", "date": "2025-03-10", "amount": "1"}, "id"},
		{"missing date", candidate.SourceInvoice, map[string]any{"invoice_id": "I1", "amount": "1"}, "date"},
		{"bad date", candidate.SourceInvoice, map[string]any{"invoice_id": "I1", "due_date": "next tuesday", "amount": "1"}, "date"},
		{"bad amount", candidate.SourceBankLedger, map[string]any{"id": "B1", "date": "2025-03-10", "amount": "n/a"}, "amount"},
		{"missing amount", candidate.SourceBankLedger, map[string]any{"id": "B1", "date": "2025-03-10"}, "amount"},
		{"unknown source", candidate.Source("crm"), map[string]any{"id": "X"}, "source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := n.Normalize(raw(tt.source, tt.fields))

			assert.Nil(t, c)
			var vErr *candidate.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestNormalize_CarriesStoredState(t *testing.T) {
	n := New("EUR")
	link := &candidate.Link{CounterpartID: "INV-1", CounterpartSource: candidate.SourceInvoice, Manual: true}
	rec := store.RawRecord{
		Source: candidate.SourceBankLedger,
		Fields: map[string]any{"id": "B1", "date": "2025-03-10", "amount": -500},
		State:  candidate.StateReconciled,
		Link:   link,
	}

	c, err := n.Normalize(rec)

	require.NoError(t, err)
	assert.Equal(t, candidate.StateReconciled, c.State)
	assert.True(t, c.HasManualLink())
	assert.Equal(t, candidate.FlowOutflow, c.Flow)
	assert.Nil(t, c.Identity)
}

func TestParseAmountString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1,245.67", "1245.67"},
		{"1.245,67", "1245.67"},
		{"12,50", "12.5"},
		{"1,245", "1245"},
		{"€ 99.99", "99.99"},
		{"-500.00", "-500"},
		{"(500.00)", "-500"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmountString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNormalize_MetadataIsCopied(t *testing.T) {
	n := New("EUR")
	fields := map[string]any{"id": "B1", "date": "2025-03-10", "amount": "10", "memo": "x"}

	c, err := n.Normalize(raw(candidate.SourceBankLedger, fields))
	require.NoError(t, err)

	c.Metadata["memo"] = "changed"
	assert.Equal(t, "x", fields["memo"])
}

func TestIdentify(t *testing.T) {
	id, date := Identify(candidate.SourceInvoice, map[string]any{
		"invoice_id": "INV-77",
		"issue_date": "2025-03-04",
	})
	assert.Equal(t, "INV-77", id)
	require.NotNil(t, date)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), *date)

	id, date = Identify(candidate.SourceBankLedger, map[string]any{"entry_id": "b-1", "value_date": "not a date"})
	assert.Equal(t, "b-1", id)
	assert.Nil(t, date)

	id, _ = Identify("unknown", map[string]any{"id": "x"})
	assert.Empty(t, id)
}
