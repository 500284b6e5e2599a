package normalizer

import "github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"

// fieldSet lists candidate field names for one source, most specific first
type fieldSet struct {
	id             []string
	date           []string
	amount         []string
	amountMinor    []string
	currency       []string
	email          []string
	name           []string
	groupKey       []string
	netAmount      []string
	settlementDate []string
	references     []string
	freeText       []string
	direction      []string
}

var commonCurrency = []string{"currency", "currency_code"}

var sourceFields = map[candidate.Source]fieldSet{
	candidate.SourceBankLedger: {
		id:         []string{"entry_id", "transaction_id", "id"},
		date:       []string{"value_date", "booking_date", "posting_date", "date"},
		amount:     []string{"amount"},
		currency:   commonCurrency,
		email:      []string{"counterparty_email", "payer_email"},
		name:       []string{"counterparty_name", "payer_name", "remitter_name"},
		references: []string{"reference", "end_to_end_id", "payment_reference"},
		freeText:   []string{"remittance_info", "description"},
	},
	candidate.SourceGatewayTransaction: {
		id:             []string{"transaction_id", "charge_id", "id"},
		date:           []string{"created_at", "transaction_date", "date"},
		amount:         []string{"gross_amount", "amount"},
		amountMinor:    []string{"amount_minor"},
		currency:       commonCurrency,
		email:          []string{"customer_email", "receipt_email", "email"},
		name:           []string{"customer_name", "billing_name", "name"},
		groupKey:       []string{"settlement_batch_id", "batch_id", "payout_id", "settlement_id"},
		netAmount:      []string{"settlement_amount", "net_amount", "payout_amount", "disbursement_amount"},
		settlementDate: []string{"disbursement_date", "settlement_date", "payout_date", "available_on"},
		references:     []string{"order_id", "order_reference", "invoice_number", "reference"},
	},
	candidate.SourceGatewayPayout: {
		id:             []string{"payout_id", "id"},
		date:           []string{"arrival_date", "payout_date", "date"},
		amount:         []string{"amount"},
		amountMinor:    []string{"amount_minor"},
		currency:       commonCurrency,
		netAmount:      []string{"net_amount"},
		settlementDate: []string{"arrival_date"},
		references:     []string{"statement_descriptor", "trace_id", "reference"},
	},
	candidate.SourceInvoice: {
		id:         []string{"invoice_id", "invoice_number", "id"},
		date:       []string{"due_date", "issue_date", "date"},
		amount:     []string{"amount_due", "total", "amount"},
		currency:   commonCurrency,
		email:      []string{"customer_email", "billing_email", "email"},
		name:       []string{"customer_name", "vendor_name", "name"},
		references: []string{"invoice_id", "invoice_number", "order_id", "purchase_order", "reference"},
		direction:  []string{"invoice_type", "direction"},
	},
}

// Invoice direction words
var (
	payableWords    = map[string]bool{"payable": true, "bill": true, "ap": true, "purchase": true}
	receivableWords = map[string]bool{"receivable": true, "sales": true, "ar": true, "sale": true}
)
