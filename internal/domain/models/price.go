package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateDisplayLayout is the human-readable date format stored alongside
// derived price records (e.g., "2025-03-17").
const DateDisplayLayout = "2006-01-02"

// PricePoint is one immutable observed or derived price fact.
//
// Fields:
//   - FundID: composite id "trustee-scheme-fund".
//   - Trustee, Scheme, FundName: the parts the id is derived from.
//   - PriceDate: the instant the price belongs to; for derived
//     granularities it is normalized to the bucket's start instant (UTC).
//   - Price: the unit price; decimal to keep aggregation exact.
type PricePoint struct {
	FundID   string
	Trustee  string
	Scheme   string
	FundName string

	PriceDate time.Time
	Price     decimal.Decimal
}

// Key returns the (trustee, scheme, fund) triple of the point.
func (p PricePoint) Key() FundKey {
	return FundKey{Trustee: p.Trustee, Scheme: p.Scheme, Fund: p.FundName}
}

// PerformanceMetrics holds trailing growth ratios per lookback window.
//
// Each ratio is (current - trailingAverage) / trailingAverage. A ratio is
// explicitly absent (Valid=false) when the trailing window had no data or a
// zero mean; absence is distinct from a 0.0 growth and is persisted as NULL.
type PerformanceMetrics struct {
	Growth1M  decimal.NullDecimal
	Growth3M  decimal.NullDecimal
	Growth6M  decimal.NullDecimal
	Growth12M decimal.NullDecimal
}

// HasAny reports whether at least one window produced a defined ratio.
func (m PerformanceMetrics) HasAny() bool {
	return m.Growth1M.Valid || m.Growth3M.Valid || m.Growth6M.Valid || m.Growth12M.Valid
}

// AggregatedPriceRecord is a PricePoint extended with a display date and
// optional performance metrics. It is produced by the bucket aggregator and
// overwritten in place (upsert, never append) on every recompute, which is
// what makes recomputation idempotent.
type AggregatedPriceRecord struct {
	PricePoint

	PriceDateDisplay string
	Performance      PerformanceMetrics
}
