// Package settlement groups gateway transactions that were paid out
// together into settlement batches.
package settlement

import (
	"regexp"
	"sort"
	"time"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/shopspring/decimal"
)

// Where a batch's disbursement date came from
const (
	DateFromSettlementField = "settlement_field"
	DateFromGroupKey        = "group_key"
)

// Reasons a batch cannot be matched
const (
	UnresolvedNoDate        = "no_date"
	UnresolvedMixedCurrency = "mixed_currency"
)

var groupKeyDate = regexp.MustCompile(`(\d{4})-?(\d{2})-?(\d{2})`)

// Batch is a derived payout aggregate. It lives only for one run.
type Batch struct {
	ID               string
	Currency         string
	DisbursementDate time.Time
	DateSource       string
	Members          []*candidate.Candidate
	NetTotal         decimal.Decimal
	GrossTotal       decimal.Decimal
}

// Key is the claim key for the batch itself
func (b *Batch) Key() string {
	return candidate.KeyOf(candidate.SourceSettlementBatch, b.ID)
}

// MemberIDs returns member ids in batch order
func (b *Batch) MemberIDs() []string {
	ids := make([]string, len(b.Members))
	for i, m := range b.Members {
		ids[i] = m.ID
	}
	return ids
}

// Flow is the direction of the payout's net total
func (b *Batch) Flow() candidate.Flow {
	switch b.NetTotal.Sign() {
	case 1:
		return candidate.FlowInflow
	case -1:
		return candidate.FlowOutflow
	}
	return candidate.FlowEither
}

// Unresolved is a batch excluded from matching
type Unresolved struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Members int    `json:"members"`
}

// Result holds the batches built from one candidate set
type Result struct {
	Batches    []*Batch
	Unresolved []Unresolved
}

// Aggregator builds settlement batches
type Aggregator struct{}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate groups gateway transactions by group key. Candidates of other
// sources or without a group key are ignored.
func (a *Aggregator) Aggregate(cands []*candidate.Candidate) Result {
	groups := make(map[string][]*candidate.Candidate)
	var order []string
	for _, c := range cands {
		if c.Source != candidate.SourceGatewayTransaction || c.GroupKey == "" {
			continue
		}
		if _, seen := groups[c.GroupKey]; !seen {
			order = append(order, c.GroupKey)
		}
		groups[c.GroupKey] = append(groups[c.GroupKey], c)
	}
	sort.Strings(order)

	var result Result
	for _, key := range order {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool {
			if !members[i].Date.Equal(members[j].Date) {
				return members[i].Date.Before(members[j].Date)
			}
			return members[i].ID < members[j].ID
		})

		batch, reason := build(key, members)
		if reason != "" {
			result.Unresolved = append(result.Unresolved, Unresolved{ID: key, Reason: reason, Members: len(members)})
			continue
		}
		result.Batches = append(result.Batches, batch)
	}
	return result
}

func build(key string, members []*candidate.Candidate) (*Batch, string) {
	b := &Batch{ID: key, Members: members, Currency: members[0].Currency}

	var latest *time.Time
	for _, m := range members {
		if m.Currency != b.Currency {
			return nil, UnresolvedMixedCurrency
		}
		b.NetTotal = b.NetTotal.Add(m.SettlementAmount())
		b.GrossTotal = b.GrossTotal.Add(m.Amount)
		if m.SettlementDate != nil && (latest == nil || m.SettlementDate.After(*latest)) {
			latest = m.SettlementDate
		}
	}

	switch {
	case latest != nil:
		b.DisbursementDate = *latest
		b.DateSource = DateFromSettlementField
	default:
		d, ok := dateFromKey(key)
		if !ok {
			return nil, UnresolvedNoDate
		}
		b.DisbursementDate = d
		b.DateSource = DateFromGroupKey
	}

	return b, ""
}

// dateFromKey extracts a YYYY-MM-DD or YYYYMMDD date embedded in key
func dateFromKey(key string) (time.Time, bool) {
	for _, m := range groupKeyDate.FindAllStringSubmatch(key, -1) {
		d, err := time.Parse("20060102", m[1]+m[2]+m[3])
		if err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
