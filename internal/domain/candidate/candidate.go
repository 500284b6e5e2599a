// Package candidate defines the normalized financial event shared by every
// stage of reconciliation.
//
// A Candidate has a small set of required fields (ID, Source, Date, Amount),
// a few best-effort fields extracted by the normalizer, and an opaque
// Metadata map that the engine never interprets.
package candidate

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies the system a record came from
type Source string

const (
	SourceBankLedger         Source = "bank_ledger"
	SourceGatewayTransaction Source = "gateway_transaction"
	SourceGatewayPayout      Source = "gateway_payout"
	SourceInvoice            Source = "invoice"

	// Derived link targets. These never exist as stored records.
	SourceSettlementBatch Source = "settlement_batch"
	SourceCombination     Source = "combination"
)

// RecordSources lists the sources that hold stored records
var RecordSources = []Source{
	SourceBankLedger,
	SourceGatewayTransaction,
	SourceGatewayPayout,
	SourceInvoice,
}

// Valid reports whether s is a stored record source
func (s Source) Valid() bool {
	for _, rs := range RecordSources {
		if s == rs {
			return true
		}
	}
	return false
}

// ParseSource converts a string into a record source
func ParseSource(s string) (Source, bool) {
	src := Source(s)
	return src, src.Valid()
}

// State is the reconciliation state of a candidate
type State string

const (
	StateUnreconciled State = "unreconciled"
	StateReconciled   State = "reconciled"
	StateNeedsReview  State = "needs_review"
)

// MatchType names the strategy that produced a link
type MatchType string

const (
	MatchTypeExactReference MatchType = "exact_reference"
	MatchTypeAmountDate     MatchType = "amount_date"
	MatchTypeFuzzyIdentity  MatchType = "fuzzy_identity"
	MatchTypeSettlement     MatchType = "settlement_batch"
	MatchTypeExtendedWindow MatchType = "extended_window"
	MatchTypeSubsetSum      MatchType = "subset_sum"
	MatchTypeManual         MatchType = "manual"
)

// Flow is the direction of money relative to the reconciled account
type Flow string

const (
	FlowInflow  Flow = "inflow"
	FlowOutflow Flow = "outflow"
	FlowEither  Flow = "either"
)

// Compatible reports whether a counterpart with flow f can pair with a
// target moving money in direction target.
func (f Flow) Compatible(target Flow) bool {
	return f == FlowEither || target == FlowEither || f == target
}

// Identity is the best-effort payer/payee identity of a record
type Identity struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Link points a reconciled candidate at its counterpart
type Link struct {
	CounterpartID     string    `json:"counterpart_id"`
	CounterpartSource Source    `json:"counterpart_source"`
	MatchType         MatchType `json:"match_type"`
	Confidence        float64   `json:"confidence"`
	Manual            bool      `json:"manual,omitempty"`
	LinkedAt          time.Time `json:"linked_at"`
}

// Candidate is a normalized financial event ready for matching
type Candidate struct {
	ID       string
	Source   Source
	Date     time.Time
	Amount   decimal.Decimal
	Currency string

	Identity *Identity
	GroupKey string

	// NetAmount and SettlementDate are the most specific settlement figures
	// found on the record; nil when the source carries none.
	NetAmount      *decimal.Decimal
	SettlementDate *time.Time

	References []string
	Flow       Flow
	Metadata   map[string]any

	State State
	Link  *Link
}

// Key returns the run-unique key of the candidate. IDs are only unique
// within a source.
func (c *Candidate) Key() string {
	return KeyOf(c.Source, c.ID)
}

// KeyOf builds a candidate key from its parts
func KeyOf(source Source, id string) string {
	return string(source) + ":" + id
}

// SettlementAmount returns the net figure when present, the gross amount
// otherwise.
func (c *Candidate) SettlementAmount() decimal.Decimal {
	if c.NetAmount != nil {
		return *c.NetAmount
	}
	return c.Amount
}

// Magnitude is the absolute settlement amount used for comparisons
func (c *Candidate) Magnitude() decimal.Decimal {
	return c.SettlementAmount().Abs()
}

// IsReconciled reports whether the candidate is already linked
func (c *Candidate) IsReconciled() bool {
	return c.State == StateReconciled && c.Link != nil
}

// HasManualLink reports whether an operator set the current link
func (c *Candidate) HasManualLink() bool {
	return c.IsReconciled() && (c.Link.Manual || c.Link.MatchType == MatchTypeManual)
}

// HasEmail reports whether an identity email is known
func (c *Candidate) HasEmail() bool {
	return c.Identity != nil && c.Identity.Email != ""
}

// HasName reports whether an identity name is known
func (c *Candidate) HasName() bool {
	return c.Identity != nil && c.Identity.Name != ""
}
