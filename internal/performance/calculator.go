// Package performance computes trailing growth metrics for aggregated
// price records.
package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/fundpulse/internal/bucket"
	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/storage"
)

// Window is one trailing lookback period.
type Window struct {
	Label  string
	Months int
}

// Windows is the fixed lookback set growth is computed over.
var Windows = []Window{
	{Label: "1m", Months: 1},
	{Label: "3m", Months: 3},
	{Label: "6m", Months: 6},
	{Label: "12m", Months: 12},
}

// Calculator computes trailing growth ratios for aggregated records by
// comparing the record's price against the mean of historical records of the
// same granularity.
//
// Window policy (pinned): the trailing window is [bucketStart - n months,
// bucketStart), bucket-aligned, and does NOT include the current bucket's own
// value as a sample. Growth = (current - trailingMean) / trailingMean.
type Calculator struct {
	repo        storage.PriceRepository
	granularity models.Granularity
}

// NewCalculator builds a Calculator reading historical records of the given
// granularity (the same granularity as the records it annotates).
func NewCalculator(repo storage.PriceRepository, g models.Granularity) *Calculator {
	return &Calculator{repo: repo, granularity: g}
}

// Attach computes growth for every lookback window and sets the record's
// performance metrics in place.
//
// A window with no historical data or a zero trailing mean yields an
// explicitly absent ratio (Valid=false), never 0 or NaN: dividing by a zero
// mean is a degenerate case that must not leak Inf into persisted records.
// Store errors abort the whole computation so the task is retried from
// scratch with consistent inputs.
func (c *Calculator) Attach(ctx context.Context, rec *models.AggregatedPriceRecord) error {
	for _, w := range Windows {
		growth, err := c.growth(ctx, rec, w.Months)
		if err != nil {
			return fmt.Errorf("trailing %s growth for %s: %w", w.Label, rec.FundID, err)
		}
		switch w.Months {
		case 1:
			rec.Performance.Growth1M = growth
		case 3:
			rec.Performance.Growth3M = growth
		case 6:
			rec.Performance.Growth6M = growth
		case 12:
			rec.Performance.Growth12M = growth
		}
	}
	return nil
}

// growth computes one window's ratio. The range query end is the last
// millisecond before the current bucket start, making the window exclusive
// of the record being annotated.
func (c *Calculator) growth(ctx context.Context, rec *models.AggregatedPriceRecord, months int) (decimal.NullDecimal, error) {
	trailingEnd := rec.PriceDate
	trailingStart := bucket.MonthsBack(c.granularity, trailingEnd, months)

	history, err := c.repo.QueryRange(ctx, rec.FundID, c.granularity, trailingStart, trailingEnd.Add(-time.Millisecond))
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	mean, count := models.MeanPrice(history)
	if count == 0 || mean.IsZero() {
		logger.L().Debug().
			Str("fund_id", rec.FundID).
			Int("months", months).
			Time("window_start", trailingStart).
			Time("window_end", trailingEnd).
			Msg("no data in trailing window")
		return decimal.NullDecimal{}, nil
	}

	ratio := rec.Price.Sub(mean).Div(mean)
	return decimal.NullDecimal{Decimal: ratio, Valid: true}, nil
}
