package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/scorer"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/settlement"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/subsetsum"
	"github.com/shopspring/decimal"
)

// exactReference links records sharing a verbatim reference
type exactReference struct {
	config Config
}

func (s *exactReference) Type() candidate.MatchType { return candidate.MatchTypeExactReference }

func (s *exactReference) Match(rc *RunContext, target *candidate.Candidate, pool *Pool) *MatchResult {
	refs := s.referenceSet(target)
	if len(refs) == 0 {
		return nil
	}

	var best *candidate.Candidate
	bestDelta := 0
	for _, cp := range pool.Counterparts {
		if rc.IsClaimed(cp.Key()) || !s.shares(refs, cp) {
			continue
		}
		delta := similarity.DayDelta(target.Date, cp.Date)
		if best == nil || delta < bestDelta {
			best, bestDelta = cp, delta
		}
	}
	if best == nil {
		return nil
	}

	sig := signalsFor(target, best, s.config.Tolerance, bestDelta)
	return &MatchResult{
		Target:     target,
		Members:    []*candidate.Candidate{best},
		MatchType:  candidate.MatchTypeExactReference,
		Confidence: 100,
		Signals:    sig,
		Outcome:    OutcomeMatched,
		Reason:     "shared reference",
	}
}

// referenceSet holds the target's references and its own id
func (s *exactReference) referenceSet(c *candidate.Candidate) map[string]bool {
	set := make(map[string]bool, len(c.References)+1)
	for _, r := range c.References {
		if len(r) >= s.config.MinReferenceLength {
			set[r] = true
		}
	}
	if id := normalizeRef(c.ID); len(id) >= s.config.MinReferenceLength {
		set[id] = true
	}
	return set
}

func (s *exactReference) shares(refs map[string]bool, cp *candidate.Candidate) bool {
	for r := range s.referenceSet(cp) {
		if refs[r] {
			return true
		}
	}
	return false
}

// amountDateWindow matches the single candidate found in the narrowest
// non-empty date window
type amountDateWindow struct {
	config Config
	scorer *scorer.Scorer
}

func (s *amountDateWindow) Type() candidate.MatchType { return candidate.MatchTypeAmountDate }

func (s *amountDateWindow) Match(rc *RunContext, target *candidate.Candidate, pool *Pool) *MatchResult {
	avail := pool.available(rc, target)

	for _, w := range s.config.DateWindows {
		var eligible []*candidate.Candidate
		for _, cp := range avail {
			if w > s.config.windowFor(cp.Source) {
				continue
			}
			if similarity.DayDelta(target.Date, cp.Date) > w {
				continue
			}
			if !s.config.Tolerance.Compare(target.Amount, cp.Magnitude()).Within {
				continue
			}
			eligible = append(eligible, cp)
		}

		switch len(eligible) {
		case 0:
			continue
		case 1:
			cp := eligible[0]
			sig := signalsFor(target, cp, s.config.Tolerance, s.config.windowFor(cp.Source))
			sig.SoleCandidate = true
			score, ok := s.scorer.Accept(sig)
			if !ok {
				return nil
			}
			return &MatchResult{
				Target:     target,
				Members:    []*candidate.Candidate{cp},
				MatchType:  candidate.MatchTypeAmountDate,
				Confidence: score.Total,
				Signals:    sig,
				Outcome:    OutcomeMatched,
				Reason:     fmt.Sprintf("sole candidate within %d days", w),
			}
		default:
			// Same amount, same window: identity has to decide
			return nil
		}
	}
	return nil
}

// fuzzyIdentity ranks candidates by identity similarity under a looser
// amount and date tolerance
type fuzzyIdentity struct {
	config Config
	scorer *scorer.Scorer
}

func (s *fuzzyIdentity) Type() candidate.MatchType { return candidate.MatchTypeFuzzyIdentity }

type scoredCandidate struct {
	cp    *candidate.Candidate
	sig   scorer.Signals
	score scorer.Score
}

func (s *fuzzyIdentity) Match(rc *RunContext, target *candidate.Candidate, pool *Pool) *MatchResult {
	if target.Identity == nil {
		return nil
	}

	var ranked []scoredCandidate
	identified := 0
	for _, cp := range pool.available(rc, target) {
		if cp.Identity == nil {
			continue
		}
		sig := signalsFor(target, cp, s.config.FuzzyTolerance, s.config.FuzzyWindowDays)
		if sig.DateDelta > sig.WindowDays || !sig.AmountWithin {
			continue
		}
		if hasIdentitySignal(sig) {
			identified++
		}
		ranked = append(ranked, scoredCandidate{cp: cp, sig: sig})
	}

	for i := range ranked {
		// Identity is the tie breaker: the only candidate that resembles the
		// payer gets the uniqueness bonus.
		ranked[i].sig.SoleCandidate = identified == 1 && hasIdentitySignal(ranked[i].sig)
		ranked[i].score = s.scorer.Score(ranked[i].sig)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score.Total != ranked[j].score.Total {
			return ranked[i].score.Total > ranked[j].score.Total
		}
		if ranked[i].sig.DateDelta != ranked[j].sig.DateDelta {
			return ranked[i].sig.DateDelta < ranked[j].sig.DateDelta
		}
		return ranked[i].cp.ID < ranked[j].cp.ID
	})

	var above []scoredCandidate
	for _, r := range ranked {
		if r.score.Total >= s.scorer.Threshold() {
			above = append(above, r)
		}
	}
	if len(above) == 0 {
		return nil
	}

	top := above[0]
	if len(above) > 1 && top.score.Total-above[1].score.Total < s.config.AmbiguityMargin {
		var tied []*candidate.Candidate
		for _, r := range above {
			if top.score.Total-r.score.Total < s.config.AmbiguityMargin {
				tied = append(tied, r.cp)
			}
		}
		return &MatchResult{
			Target:     target,
			Members:    tied,
			MatchType:  candidate.MatchTypeFuzzyIdentity,
			Confidence: top.score.Total,
			Signals:    top.sig,
			Outcome:    OutcomeNeedsReview,
			Reason:     fmt.Sprintf("%d candidates within %.0f points of %.2f", len(tied), s.config.AmbiguityMargin, top.score.Total),
			Err:        ErrAmbiguousMatch,
		}
	}

	return &MatchResult{
		Target:     target,
		Members:    []*candidate.Candidate{top.cp},
		MatchType:  candidate.MatchTypeFuzzyIdentity,
		Confidence: top.score.Total,
		Signals:    top.sig,
		Outcome:    OutcomeMatched,
		Reason:     "identity match",
	}
}

// settlementAggregate matches a bank deposit to a batch net total
type settlementAggregate struct {
	config Config
	scorer *scorer.Scorer
}

func (s *settlementAggregate) Type() candidate.MatchType { return candidate.MatchTypeSettlement }

func (s *settlementAggregate) Match(rc *RunContext, target *candidate.Candidate, pool *Pool) *MatchResult {
	var best *settlement.Batch
	var bestDelta int
	var bestDiff decimal.Decimal

	for _, b := range pool.Batches {
		if !s.available(rc, b) {
			continue
		}
		if target.Currency != "" && b.Currency != "" && target.Currency != b.Currency {
			continue
		}
		if !b.Flow().Compatible(target.Flow) {
			continue
		}

		delta := similarity.DayDelta(target.Date, b.DisbursementDate)
		if delta > s.config.SettlementWindowDays {
			continue
		}
		diff := target.Amount.Abs().Sub(b.NetTotal.Abs()).Abs()
		if diff.GreaterThan(s.config.SettlementTolerance) {
			continue
		}

		if best == nil || delta < bestDelta || (delta == bestDelta && diff.LessThan(bestDiff)) {
			best, bestDelta, bestDiff = b, delta, diff
		}
	}
	if best == nil {
		return nil
	}

	sig := scorer.Signals{
		Email:         similarity.EmailNone,
		DateDelta:     bestDelta,
		WindowDays:    s.config.SettlementWindowDays,
		AmountDelta:   bestDiff,
		AmountExact:   bestDiff.LessThanOrEqual(s.config.Tolerance.Absolute),
		AmountWithin:  true,
		SoleCandidate: true,
	}
	return &MatchResult{
		Target:     target,
		Members:    best.Members,
		Batch:      best,
		MatchType:  candidate.MatchTypeSettlement,
		Confidence: s.scorer.Score(sig).Total,
		Signals:    sig,
		Outcome:    OutcomeMatched,
		Reason:     fmt.Sprintf("settlement batch of %d (date from %s)", len(best.Members), best.DateSource),
	}
}

// available reports whether neither the batch nor any member is claimed
func (s *settlementAggregate) available(rc *RunContext, b *settlement.Batch) bool {
	if rc.IsClaimed(b.Key()) {
		return false
	}
	for _, m := range b.Members {
		if rc.IsClaimed(m.Key()) {
			return false
		}
	}
	return true
}

// subsetSum is the last resort: an extended single retry, then pairs
type subsetSum struct {
	config   Config
	scorer   *scorer.Scorer
	resolver *subsetsum.Resolver
}

func (s *subsetSum) Type() candidate.MatchType { return candidate.MatchTypeSubsetSum }

func (s *subsetSum) Match(rc *RunContext, target *candidate.Candidate, pool *Pool) *MatchResult {
	res := s.resolver.Resolve(target, pool.available(rc, target))
	if res == nil {
		return nil
	}

	matchType := candidate.MatchTypeSubsetSum
	if res.Kind == subsetsum.KindSingle {
		matchType = candidate.MatchTypeExtendedWindow
	}

	if res.Ambiguous {
		return &MatchResult{
			Target:    target,
			Members:   res.Members,
			MatchType: matchType,
			Outcome:   OutcomeNeedsReview,
			Reason:    fmt.Sprintf("%d candidates match within %d days", len(res.Members), s.config.Subset.ExtendedWindowDays),
			Err:       ErrAmbiguousMatch,
		}
	}

	var sig scorer.Signals
	if res.Kind == subsetsum.KindSingle {
		sig = signalsFor(target, res.Members[0], s.config.Subset.Tolerance, s.config.Subset.ExtendedWindowDays)
	} else {
		sig = scorer.Signals{
			Email:        similarity.EmailNone,
			DateDelta:    res.MaxDateDelta,
			WindowDays:   s.config.Subset.ExtendedWindowDays,
			AmountDelta:  res.Delta,
			AmountExact:  res.Exact,
			AmountWithin: true,
		}
	}
	sig.SoleCandidate = true

	return &MatchResult{
		Target:     target,
		Members:    res.Members,
		MatchType:  matchType,
		Confidence: s.scorer.Score(sig).Total,
		Signals:    sig,
		Outcome:    OutcomeMatched,
		Reason:     fmt.Sprintf("%s within %d days", res.Kind, s.config.Subset.ExtendedWindowDays),
	}
}

func normalizeRef(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
