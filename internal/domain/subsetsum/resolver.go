// Package subsetsum finds a single candidate or a pair of candidates whose
// amounts add up to a target that no direct strategy could match.
//
// Search is bounded: a single-candidate retry in an extended date window,
// then pairs over the nearest PoolSize candidates, so the worst case is
// quadratic in PoolSize. The first pair within tolerance wins.
package subsetsum

import (
	"sort"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/shopspring/decimal"
)

// Kind is the shape of a resolution
type Kind string

const (
	KindSingle Kind = "single"
	KindPair   Kind = "pair"
)

// Config bounds the search
type Config struct {
	ExtendedWindowDays int
	Tolerance          similarity.Tolerance
	PoolSize           int
}

// DefaultConfig returns the standard bounds: 14 days, 1%, 50 candidates
func DefaultConfig() Config {
	return Config{
		ExtendedWindowDays: 14,
		Tolerance: similarity.Tolerance{
			Absolute: decimal.RequireFromString("0.01"),
			Percent:  decimal.NewFromInt(1),
		},
		PoolSize: 50,
	}
}

// Resolution is a found combination, or an ambiguous single retry
type Resolution struct {
	Kind         Kind
	Members      []*candidate.Candidate
	Delta        decimal.Decimal
	Exact        bool
	MaxDateDelta int
	Ambiguous    bool
}

// Resolver runs the bounded search
type Resolver struct {
	config Config
}

// NewResolver creates a resolver
func NewResolver(config Config) *Resolver {
	return &Resolver{config: config}
}

// Config returns the resolver bounds
func (r *Resolver) Config() Config {
	return r.config
}

// Resolve searches pool for a single candidate or a pair matching target.
// The caller passes only unclaimed, direction-compatible candidates.
// Returns nil when nothing fits.
func (r *Resolver) Resolve(target *candidate.Candidate, pool []*candidate.Candidate) *Resolution {
	if target.Amount.IsZero() {
		return nil
	}

	nearby := r.nearby(target, pool)
	if len(nearby) == 0 {
		return nil
	}

	if res := r.single(target, nearby); res != nil {
		return res
	}
	return r.pair(target, nearby)
}

// nearby returns pool members inside the extended window, closest first
func (r *Resolver) nearby(target *candidate.Candidate, pool []*candidate.Candidate) []*candidate.Candidate {
	var out []*candidate.Candidate
	for _, c := range pool {
		if similarity.WithinDays(target.Date, c.Date, r.config.ExtendedWindowDays) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di := similarity.DayDelta(target.Date, out[i].Date)
		dj := similarity.DayDelta(target.Date, out[j].Date)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Resolver) single(target *candidate.Candidate, nearby []*candidate.Candidate) *Resolution {
	var exact, within []*candidate.Candidate
	var exactCmp, withinCmp similarity.AmountComparison
	for _, c := range nearby {
		cmp := r.config.Tolerance.Compare(target.Amount, c.Magnitude())
		if cmp.Exact {
			exact = append(exact, c)
			exactCmp = cmp
		}
		if cmp.Within {
			within = append(within, c)
			withinCmp = cmp
		}
	}

	switch {
	case len(exact) == 1:
		return r.resolution(target, KindSingle, exact, exactCmp)
	case len(exact) > 1:
		return &Resolution{Kind: KindSingle, Members: exact, Ambiguous: true}
	case len(within) == 1:
		return r.resolution(target, KindSingle, within, withinCmp)
	case len(within) > 1:
		return &Resolution{Kind: KindSingle, Members: within, Ambiguous: true}
	}
	return nil
}

func (r *Resolver) pair(target *candidate.Candidate, nearby []*candidate.Candidate) *Resolution {
	if len(nearby) > r.config.PoolSize && r.config.PoolSize > 0 {
		nearby = nearby[:r.config.PoolSize]
	}

	for i := 0; i < len(nearby); i++ {
		for j := i + 1; j < len(nearby); j++ {
			sum := nearby[i].SettlementAmount().Add(nearby[j].SettlementAmount())
			cmp := r.config.Tolerance.Compare(target.Amount, sum)
			if cmp.Within {
				return r.resolution(target, KindPair, []*candidate.Candidate{nearby[i], nearby[j]}, cmp)
			}
		}
	}
	return nil
}

func (r *Resolver) resolution(target *candidate.Candidate, kind Kind, members []*candidate.Candidate, cmp similarity.AmountComparison) *Resolution {
	res := &Resolution{Kind: kind, Members: members, Delta: cmp.Delta, Exact: cmp.Exact}
	for _, m := range members {
		res.MaxDateDelta = max(res.MaxDateDelta, similarity.DayDelta(target.Date, m.Date))
	}
	return res
}
