package bucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guttosm/fundpulse/internal/domain/models"
)

func d(y int, m time.Month, day, hour int) time.Time {
	return time.Date(y, m, day, hour, 0, 0, 0, time.UTC)
}

func TestWeekStart_PinnedToMonday(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday maps to itself", d(2025, time.March, 17, 0), d(2025, time.March, 17, 0)},
		{"monday afternoon", d(2025, time.March, 17, 15), d(2025, time.March, 17, 0)},
		{"wednesday", d(2025, time.March, 19, 9), d(2025, time.March, 17, 0)},
		{"sunday belongs to preceding monday", d(2025, time.March, 23, 23), d(2025, time.March, 17, 0)},
		{"week spanning month boundary", d(2025, time.April, 1, 12), d(2025, time.March, 31, 0)},
		{"week spanning year boundary", d(2026, time.January, 2, 0), d(2025, time.December, 29, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WeekStart(tc.in))
		})
	}
}

func TestWeekEnd(t *testing.T) {
	// Last millisecond of Sunday
	want := time.Date(2025, time.March, 23, 23, 59, 59, 999000000, time.UTC)
	assert.Equal(t, want, WeekEnd(d(2025, time.March, 19, 9)))
}

func TestMonthStartEnd(t *testing.T) {
	assert.Equal(t, d(2025, time.February, 1, 0), MonthStart(d(2025, time.February, 14, 8)))
	// February in a non-leap year ends on the 28th
	wantEnd := time.Date(2025, time.February, 28, 23, 59, 59, 999000000, time.UTC)
	assert.Equal(t, wantEnd, MonthEnd(d(2025, time.February, 14, 8)))
	// Leap year
	wantLeap := time.Date(2024, time.February, 29, 23, 59, 59, 999000000, time.UTC)
	assert.Equal(t, wantLeap, MonthEnd(d(2024, time.February, 1, 0)))
}

// Any two timestamps within the same calendar week must share a week start;
// analogous for months.
func TestSameBucketSameStart(t *testing.T) {
	week := []time.Time{
		d(2025, time.June, 2, 0),  // Monday
		d(2025, time.June, 4, 13), // Wednesday
		d(2025, time.June, 8, 23), // Sunday
	}
	for _, ts := range week {
		assert.Equal(t, WeekStart(week[0]), WeekStart(ts), "timestamp %v", ts)
	}

	month := []time.Time{
		d(2025, time.June, 1, 0),
		d(2025, time.June, 15, 6),
		d(2025, time.June, 30, 23),
	}
	for _, ts := range month {
		assert.Equal(t, MonthStart(month[0]), MonthStart(ts), "timestamp %v", ts)
	}
}

// Start must be monotonic: t1 <= t2 implies Start(t1) <= Start(t2).
func TestStartMonotonic(t *testing.T) {
	base := d(2024, time.December, 25, 0)
	for _, g := range []models.Granularity{models.GranularityDay, models.GranularityWeek, models.GranularityMonth} {
		prev := Start(g, base)
		for i := 1; i < 120; i++ {
			cur := Start(g, base.AddDate(0, 0, i))
			if cur.Before(prev) {
				t.Fatalf("%s start not monotonic at +%d days: %v < %v", g, i, cur, prev)
			}
			prev = cur
		}
	}
}

func TestMonthsBack(t *testing.T) {
	// 1 month back from a week start, re-aligned to a week start
	start := d(2025, time.March, 17, 0) // Monday
	got := MonthsBack(models.GranularityWeek, start, 1)
	assert.Equal(t, d(2025, time.February, 17, 0), got) // Feb 17 2025 is a Monday
	assert.Equal(t, time.Monday, got.Weekday())

	// 12 months back from a month start
	assert.Equal(t, d(2024, time.March, 1, 0), MonthsBack(models.GranularityMonth, d(2025, time.March, 1, 0), 12))
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "2025-03-17", DisplayDate(d(2025, time.March, 17, 0)))
}
