package matcher

import (
	"errors"
	"sort"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/scorer"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/settlement"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/subsetsum"
	"github.com/shopspring/decimal"
)

// ErrAmbiguousMatch marks a target with several equally good candidates
var ErrAmbiguousMatch = errors.New("ambiguous match")

// Config holds matcher configuration
type Config struct {
	// Amount+date window strategy
	Tolerance     similarity.Tolerance
	DateWindows   []int                    // tried narrowest first
	SourceWindows map[candidate.Source]int // widest window per counterpart source

	// Fuzzy identity strategy
	FuzzyTolerance  similarity.Tolerance
	FuzzyWindowDays int
	AmbiguityMargin float64

	Threshold float64
	Weights   scorer.Weights

	// Settlement aggregate strategy
	SettlementWindowDays int
	SettlementTolerance  decimal.Decimal

	// MinReferenceLength ignores short ids that collide across systems
	MinReferenceLength int

	Subset subsetsum.Config
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	cent := decimal.RequireFromString("0.01")
	return Config{
		Tolerance:   similarity.Tolerance{Absolute: cent},
		DateWindows: []int{0, 2, 7},
		SourceWindows: map[candidate.Source]int{
			candidate.SourceGatewayPayout:      2,
			candidate.SourceGatewayTransaction: 2,
			candidate.SourceInvoice:            7,
		},
		FuzzyTolerance:       similarity.Tolerance{Absolute: cent, Percent: decimal.NewFromInt(5)},
		FuzzyWindowDays:      7,
		AmbiguityMargin:      5,
		Threshold:            scorer.DefaultThreshold,
		Weights:              scorer.DefaultWeights(),
		SettlementWindowDays: 3,
		SettlementTolerance:  decimal.RequireFromString("0.10"),
		MinReferenceLength:   5,
		Subset:               subsetsum.DefaultConfig(),
	}
}

// windowFor returns the widest date window allowed for a counterpart source
func (c Config) windowFor(source candidate.Source) int {
	if w, ok := c.SourceWindows[source]; ok {
		return w
	}
	if len(c.DateWindows) == 0 {
		return 0
	}
	return c.DateWindows[len(c.DateWindows)-1]
}

// Outcome is the disposition of a match result
type Outcome string

const (
	OutcomeMatched     Outcome = "matched"
	OutcomeNeedsReview Outcome = "needs_review"
)

// MatchResult links a target to one counterpart, a pair, or a settlement
// batch. Needs-review results name the competing candidates in Members.
type MatchResult struct {
	Target     *candidate.Candidate
	Members    []*candidate.Candidate
	Batch      *settlement.Batch
	MatchType  candidate.MatchType
	Confidence float64
	Signals    scorer.Signals
	Outcome    Outcome
	Reason     string
	Err        error
	Applied    bool
}

// CounterpartIDs returns member ids in result order
func (r *MatchResult) CounterpartIDs() []string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.ID
	}
	return ids
}

// BatchID returns the settlement batch id, or "" for direct matches
func (r *MatchResult) BatchID() string {
	if r.Batch == nil {
		return ""
	}
	return r.Batch.ID
}

// Participants returns the target followed by every member
func (r *MatchResult) Participants() []*candidate.Candidate {
	out := make([]*candidate.Candidate, 0, len(r.Members)+1)
	out = append(out, r.Target)
	return append(out, r.Members...)
}

// CounterpartOf returns the id and source a participant's link points at.
// The target links to its single member, the batch, or the combination;
// members link to the batch or back to the target.
func (r *MatchResult) CounterpartOf(c *candidate.Candidate) (string, candidate.Source) {
	if r.Batch != nil {
		return r.Batch.ID, candidate.SourceSettlementBatch
	}
	if c != r.Target {
		return r.Target.ID, r.Target.Source
	}
	if len(r.Members) == 1 {
		return r.Members[0].ID, r.Members[0].Source
	}
	return r.CombinationID(), candidate.SourceCombination
}

// CombinationID names a multi-member group independent of member order
func (r *MatchResult) CombinationID() string {
	keys := make([]string, len(r.Members))
	for i, m := range r.Members {
		keys[i] = m.Key()
	}
	sort.Strings(keys)
	return "combo:" + strings.Join(keys, "+")
}

// TotalValue is the magnitude of the target
func (r *MatchResult) TotalValue() decimal.Decimal {
	return r.Target.Amount.Abs()
}

// claimKeys are the keys a result takes from the run context
func (r *MatchResult) claimKeys() []string {
	if r.Outcome == OutcomeNeedsReview {
		return []string{r.Target.Key()}
	}
	keys := []string{r.Target.Key()}
	for _, m := range r.Members {
		keys = append(keys, m.Key())
	}
	if r.Batch != nil {
		keys = append(keys, r.Batch.Key())
	}
	return keys
}

// Pool is the counterpart side of one run
type Pool struct {
	Counterparts []*candidate.Candidate
	Batches      []*settlement.Batch
}

// NewPool creates a pool with counterparts in date order
func NewPool(counterparts []*candidate.Candidate, batches []*settlement.Batch) *Pool {
	sorted := make([]*candidate.Candidate, len(counterparts))
	copy(sorted, counterparts)
	sortByDate(sorted)
	return &Pool{Counterparts: sorted, Batches: batches}
}

// available returns unclaimed counterparts whose direction suits target
func (p *Pool) available(rc *RunContext, target *candidate.Candidate) []*candidate.Candidate {
	var out []*candidate.Candidate
	for _, c := range p.Counterparts {
		if rc.IsClaimed(c.Key()) || !c.Flow.Compatible(target.Flow) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortByDate(cands []*candidate.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].Date.Equal(cands[j].Date) {
			return cands[i].Date.Before(cands[j].Date)
		}
		if cands[i].Source != cands[j].Source {
			return cands[i].Source < cands[j].Source
		}
		return cands[i].ID < cands[j].ID
	})
}
