package similarity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Tolerance bounds an amount difference. A difference within Absolute is
// exact; within Percent of the target magnitude it is merely within.
type Tolerance struct {
	Absolute decimal.Decimal
	Percent  decimal.Decimal
}

// AmountComparison is the outcome of comparing two magnitudes
type AmountComparison struct {
	Delta  decimal.Decimal
	Exact  bool
	Within bool
}

// Compare compares the magnitudes of target and other
func (t Tolerance) Compare(target, other decimal.Decimal) AmountComparison {
	delta := target.Abs().Sub(other.Abs()).Abs()
	cmp := AmountComparison{Delta: delta}

	if delta.LessThanOrEqual(t.Absolute) {
		cmp.Exact = true
		cmp.Within = true
		return cmp
	}
	if t.Percent.IsPositive() {
		limit := target.Abs().Mul(t.Percent).Div(hundred)
		cmp.Within = delta.LessThanOrEqual(limit)
	}
	return cmp
}

// DayDelta returns the absolute number of whole days between a and b
func DayDelta(a, b time.Time) int {
	return int(math.Round(math.Abs(a.Sub(b).Hours() / 24)))
}

// WithinDays reports whether a and b are at most days apart
func WithinDays(a, b time.Time, days int) bool {
	return DayDelta(a, b) <= days
}
