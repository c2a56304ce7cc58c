// Package bucket maps instants onto the calendar buckets (weeks, months)
// the aggregation pipeline works in.
//
// All functions are pure, total, and monotonic: any valid instant maps to
// exactly one bucket, and t1 <= t2 implies Start(t1) <= Start(t2). Bucket
// identity is shared by every stage of the pipeline, so the week boundary is
// pinned explicitly: weeks are ISO-8601, starting Monday 00:00:00 UTC.
// (The system this replaces relied on a date library's locale default, which
// silently flips between Sunday and Monday depending on deployment.)
package bucket

import (
	"time"

	"github.com/guttosm/fundpulse/internal/domain/models"
)

// WeekStart returns Monday 00:00:00.000 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	u := t.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	// Monday=0 .. Sunday=6
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekEnd returns the last representable millisecond of the ISO week
// containing t, so that an inclusive range [WeekStart, WeekEnd] covers
// exactly one week of daily records.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7).Add(-time.Millisecond)
}

// MonthStart returns the first instant (00:00:00.000 UTC, day 1) of the
// calendar month containing t.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last representable millisecond of the calendar month
// containing t.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0).Add(-time.Millisecond)
}

// Start returns the bucket start for the given target granularity.
// Day passes through unchanged (normalized to 00:00 UTC).
func Start(g models.Granularity, t time.Time) time.Time {
	switch g {
	case models.GranularityWeek:
		return WeekStart(t)
	case models.GranularityMonth:
		return MonthStart(t)
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// End returns the bucket end (inclusive, millisecond precision) for the
// given target granularity.
func End(g models.Granularity, t time.Time) time.Time {
	switch g {
	case models.GranularityWeek:
		return WeekEnd(t)
	case models.GranularityMonth:
		return MonthEnd(t)
	}
	return Start(g, t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// MonthsBack returns the start of the bucket n calendar months before t,
// aligned to the same granularity. Used to build trailing-performance
// windows: [MonthsBack(bucketStart, n), bucketStart).
func MonthsBack(g models.Granularity, t time.Time, n int) time.Time {
	return Start(g, t.UTC().AddDate(0, -n, 0))
}

// DisplayDate renders the bucket start as the human-readable date string
// stored on aggregated records.
func DisplayDate(t time.Time) string {
	return t.UTC().Format(models.DateDisplayLayout)
}
