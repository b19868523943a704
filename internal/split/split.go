// internal/split/split.go
package split

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places shares are computed at. It matches
// the NUMERIC(20, 4) columns the ledger is stored in.
const Scale = 4

// Equal divides total into n shares that sum to total exactly. Shares are
// rounded to Scale decimal places and the rounding remainder is folded into
// the first share, so the earliest-joined member absorbs the sub-unit
// difference. total must be positive and n at least 1.
func Equal(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split: need at least one participant, got %d", n)
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("split: total must be positive, got %s", total)
	}

	base := total.DivRound(decimal.NewFromInt(int64(n)), Scale)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = base
	}
	// Fold the rounding drift into the first share.
	shares[0] = shares[0].Add(total.Sub(base.Mul(decimal.NewFromInt(int64(n)))))
	return shares, nil
}

// EvenShare returns the per-member share of total, truncated at Scale, used
// where every member receives the same quota (the auto-split free-money
// recompute). Unlike Equal it does not preserve an exact sum; truncation
// keeps n quotas collectively within total.
func EvenShare(total decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 || total.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Truncate(Scale)
}
