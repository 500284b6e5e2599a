// Package matcher links bank ledger entries to their counterparts.
//
// Strategies run in a fixed order, each over every unclaimed target before
// the next one starts:
//   - Exact reference: a shared order/transaction reference, confidence 100
//   - Amount+date window: one candidate within tolerance in the narrowest
//     non-empty date window
//   - Fuzzy identity: identity similarity breaks ties between candidates
//   - Settlement aggregate: a bank deposit against a batch net total
//   - Subset sum: a single candidate in an extended window, then a pair
//
// Example usage:
//
//	engine := matcher.NewEngine(matcher.DefaultConfig(), logger)
//	rc := matcher.NewRunContext()
//	results := engine.Match(rc, bankEntries, matcher.NewPool(counterparts, batches))
package matcher

import (
	"log/slog"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/scorer"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/subsetsum"
)

// Strategy proposes at most one result for a target
type Strategy interface {
	Type() candidate.MatchType
	Match(rc *RunContext, target *candidate.Candidate, pool *Pool) *MatchResult
}

// Engine runs the strategy chain
type Engine struct {
	config     Config
	scorer     *scorer.Scorer
	strategies []Strategy
	logger     *slog.Logger
}

// NewEngine creates an engine with the standard strategy chain
func NewEngine(config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	sc := scorer.New(config.Weights, config.Threshold)

	return &Engine{
		config: config,
		scorer: sc,
		strategies: []Strategy{
			&exactReference{config: config},
			&amountDateWindow{config: config, scorer: sc},
			&fuzzyIdentity{config: config, scorer: sc},
			&settlementAggregate{config: config, scorer: sc},
			&subsetSum{config: config, scorer: sc, resolver: subsetsum.NewResolver(config.Subset)},
		},
		logger: logger,
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Strategies returns the chain in priority order
func (e *Engine) Strategies() []Strategy {
	return e.strategies
}

// Match runs every strategy against the unclaimed targets and returns the
// results in the order they claimed their candidates.
func (e *Engine) Match(rc *RunContext, targets []*candidate.Candidate, pool *Pool) []*MatchResult {
	ordered := make([]*candidate.Candidate, len(targets))
	copy(ordered, targets)
	sortByDate(ordered)

	var results []*MatchResult
	for _, s := range e.strategies {
		for _, target := range ordered {
			if rc.IsClaimed(target.Key()) || target.Amount.IsZero() {
				continue
			}

			res := s.Match(rc, target, pool)
			if res == nil {
				continue
			}
			if !rc.Claim(res.MatchType, res.claimKeys()...) {
				e.logger.Warn("Skipping result with claimed candidates",
					"target", target.ID,
					"strategy", s.Type())
				continue
			}

			e.logger.Debug("Strategy result",
				"target", target.ID,
				"strategy", s.Type(),
				"outcome", res.Outcome,
				"counterparts", res.CounterpartIDs(),
				"batch", res.BatchID(),
				"confidence", res.Confidence)
			results = append(results, res)
		}
	}

	return results
}

// signalsFor compares target with one counterpart
func signalsFor(target, cp *candidate.Candidate, tol similarity.Tolerance, window int) scorer.Signals {
	cmp := tol.Compare(target.Amount, cp.Magnitude())
	sig := scorer.Signals{
		Email:        similarity.EmailNone,
		DateDelta:    similarity.DayDelta(target.Date, cp.Date),
		WindowDays:   window,
		AmountDelta:  cmp.Delta,
		AmountExact:  cmp.Exact,
		AmountWithin: cmp.Within,
	}
	if target.HasEmail() && cp.HasEmail() {
		sig.Email = similarity.CompareEmail(target.Identity.Email, cp.Identity.Email)
	}
	if target.HasName() && cp.HasName() {
		sig.HasName = true
		sig.NameSimilarity = similarity.NameSimilarity(target.Identity.Name, cp.Identity.Name)
	}
	return sig
}

// hasIdentitySignal reports whether sig carries any positive identity evidence
func hasIdentitySignal(sig scorer.Signals) bool {
	return sig.Email != similarity.EmailNone || (sig.HasName && sig.NameSimilarity >= scorer.NameWeakAt)
}
