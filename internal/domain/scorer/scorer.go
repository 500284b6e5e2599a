// Package scorer turns strategy signals into a 0-100 confidence score.
//
// Date and amount are gates: a candidate outside either is vetoed no matter
// how strong its identity signals are. Identity and proximity signals then
// add fixed point weights.
package scorer

import (
	"math"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	"github.com/shopspring/decimal"
)

// DefaultThreshold is the minimum accepted confidence
const DefaultThreshold = 70.0

// Weights holds point values for each signal
type Weights struct {
	EmailExact     float64
	EmailDomain    float64
	NameStrong     float64 // similarity >= NameStrongAt
	NameWeak       float64 // similarity >= NameWeakAt
	DateSameDay    float64
	DateWindowEdge float64
	AmountExact    float64
	TripleMatch    float64
	SoleCandidate  float64
}

// Name similarity bands
const (
	NameStrongAt = 0.90
	NameWeakAt   = 0.70
)

// DefaultWeights returns the standard weights
func DefaultWeights() Weights {
	return Weights{
		EmailExact:     40,
		EmailDomain:    20,
		NameStrong:     25,
		NameWeak:       15,
		DateSameDay:    20,
		DateWindowEdge: 10,
		AmountExact:    15,
		TripleMatch:    10,
		SoleCandidate:  40,
	}
}

// Signals are the observations a strategy makes about one pairing
type Signals struct {
	Email          similarity.EmailMatch `json:"email_match"`
	NameSimilarity float64               `json:"name_similarity"`
	HasName        bool                  `json:"-"`
	DateDelta      int                   `json:"date_delta_days"`
	WindowDays     int                   `json:"window_days"`
	AmountDelta    decimal.Decimal       `json:"amount_delta"`
	AmountExact    bool                  `json:"amount_exact"`
	AmountWithin   bool                  `json:"amount_within"`
	SoleCandidate  bool                  `json:"sole_candidate"`
}

// Score is a computed confidence
type Score struct {
	Total  float64
	Vetoed bool
	Reason string
}

// Scorer computes and thresholds confidence
type Scorer struct {
	weights   Weights
	threshold float64
}

// New creates a scorer. A non-positive threshold selects DefaultThreshold.
func New(weights Weights, threshold float64) *Scorer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Scorer{weights: weights, threshold: threshold}
}

// Threshold returns the acceptance threshold
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score computes the confidence for sig
func (s *Scorer) Score(sig Signals) Score {
	if sig.DateDelta > sig.WindowDays {
		return Score{Vetoed: true, Reason: "date outside window"}
	}
	if !sig.AmountWithin {
		return Score{Vetoed: true, Reason: "amount outside tolerance"}
	}

	w := s.weights
	var total float64

	switch sig.Email {
	case similarity.EmailExact:
		total += w.EmailExact
	case similarity.EmailDomain:
		total += w.EmailDomain
	}

	if sig.HasName {
		switch {
		case sig.NameSimilarity >= NameStrongAt:
			total += w.NameStrong
		case sig.NameSimilarity >= NameWeakAt:
			total += w.NameWeak
		}
	}

	total += s.datePoints(sig.DateDelta, sig.WindowDays)

	if sig.AmountExact {
		total += w.AmountExact
	}
	if sig.Email == similarity.EmailExact && sig.DateDelta == 0 && sig.AmountExact {
		total += w.TripleMatch
	}
	if sig.SoleCandidate {
		total += w.SoleCandidate
	}

	return Score{Total: round2(math.Min(100, total))}
}

// Accept reports whether sig clears the threshold
func (s *Scorer) Accept(sig Signals) (Score, bool) {
	score := s.Score(sig)
	return score, !score.Vetoed && score.Total >= s.threshold
}

// datePoints falls linearly from DateSameDay at 0 days to DateWindowEdge
// at the window edge.
func (s *Scorer) datePoints(delta, window int) float64 {
	w := s.weights
	if window <= 0 || delta <= 0 {
		return w.DateSameDay
	}
	frac := float64(delta) / float64(window)
	return w.DateSameDay - (w.DateSameDay-w.DateWindowEdge)*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
