package models

import "github.com/shopspring/decimal"

// MeanPrice returns the arithmetic mean of the record prices and the sample
// count. Accumulation is exact decimal arithmetic; the same inputs always
// produce the same mean, which is what makes bucket recomputation and
// trailing-window math idempotent. A zero count returns decimal zero.
func MeanPrice(recs []AggregatedPriceRecord) (decimal.Decimal, int) {
	if len(recs) == 0 {
		return decimal.Zero, 0
	}
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(recs)))), len(recs)
}
