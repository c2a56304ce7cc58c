package models

import "fmt"

// Granularity identifies the time bucket a price series is stored at.
// The granularity of a price point is given by the table it lives in,
// not by a field on the record.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ordering used by FinerThan; day is the finest series.
var granularityRank = map[Granularity]int{
	GranularityDay:   0,
	GranularityWeek:  1,
	GranularityMonth: 2,
}

// Table returns the Postgres table holding the series for this granularity.
func (g Granularity) Table() string {
	switch g {
	case GranularityDay:
		return "fund_price_daily"
	case GranularityWeek:
		return "fund_price_weekly"
	case GranularityMonth:
		return "fund_price_monthly"
	}
	return ""
}

// FinerThan reports whether g is a strictly finer series than other
// (e.g., day is finer than week). Aggregation always reads a strictly
// finer source than the bucket it writes.
func (g Granularity) FinerThan(other Granularity) bool {
	gr, ok1 := granularityRank[g]
	or, ok2 := granularityRank[other]
	return ok1 && ok2 && gr < or
}

// ParseGranularity converts a string into a Granularity.
// Accepts both the long form ("day") and the single-letter period
// code used by the API and the legacy data files ("D", "W", "M").
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "day", "D", "d":
		return GranularityDay, nil
	case "week", "W", "w":
		return GranularityWeek, nil
	case "month", "M", "m":
		return GranularityMonth, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}
