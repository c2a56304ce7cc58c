// Package aggregate recomputes bucket average prices from a finer-grained
// source series.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/guttosm/fundpulse/internal/bucket"
	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/performance"
	"github.com/guttosm/fundpulse/internal/storage"
)

// Aggregator consumes BucketTask messages for one target granularity,
// recomputes the bucket's arithmetic mean from the source series, and
// upserts the resulting aggregated record.
//
// The upsert is the unit of consistency: re-running the same task with
// unchanged source data overwrites with an identical record, so duplicate
// delivery and concurrent recomputes of the same bucket are safe without
// any locking between workers.
type Aggregator struct {
	repo   storage.PriceRepository
	target models.Granularity
	source models.Granularity
	perf   *performance.Calculator // nil on paths without growth metrics
}

// New builds an Aggregator for the given target and source granularities.
// The source must be strictly finer than the target (day feeds week, day or
// week feeds month); anything else is a wiring error caught here.
//
// perf may be nil: the monthly path persists plain averages, the weekly path
// attaches trailing growth.
func New(repo storage.PriceRepository, target, source models.Granularity, perf *performance.Calculator) (*Aggregator, error) {
	if !source.FinerThan(target) {
		return nil, fmt.Errorf("source granularity %q must be strictly finer than target %q", source, target)
	}
	return &Aggregator{repo: repo, target: target, source: source, perf: perf}, nil
}

// Process recomputes one (fund, bucket) pair.
//
// Behavior:
//  1. Bucket-align the task date for the target granularity.
//  2. Range-query the source series inside [bucketStart, bucketEnd].
//  3. Zero points: no write at all, return (nil, nil) — a recoverable
//     "no data for bucket" outcome, not an error. Writing a zero-priced
//     record here would poison downstream averages.
//  4. Upsert the record with the decimal mean, the bucket start as its
//     price date, and the display string.
//  5. If a performance calculator is wired, attach trailing growth and
//     re-upsert. The plain record is durably persisted first, so a retry
//     of the performance step reads consistent inputs.
//
// Any error leaves no partial side effect beyond an idempotent upsert; the
// caller nacks the task and the transport redelivers it.
func (a *Aggregator) Process(ctx context.Context, task models.BucketTask) (*models.AggregatedPriceRecord, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	bucketStart := bucket.Start(a.target, task.Date())
	bucketEnd := bucket.End(a.target, bucketStart)

	points, err := a.repo.QueryRange(ctx, task.FundID, a.source, bucketStart, bucketEnd)
	if err != nil {
		return nil, fmt.Errorf("query %s source for %s bucket %s: %w", a.source, a.target, task.FundID, err)
	}

	if len(points) == 0 {
		logger.L().Info().
			Str("fund_id", task.FundID).
			Str("granularity", string(a.target)).
			Time("bucket_start", bucketStart).
			Msg("no data for bucket, skipping write")
		return nil, nil
	}

	mean, count := models.MeanPrice(points)

	rec := &models.AggregatedPriceRecord{
		PricePoint: models.PricePoint{
			FundID:    task.FundID,
			Trustee:   points[0].Trustee,
			Scheme:    points[0].Scheme,
			FundName:  points[0].FundName,
			PriceDate: bucketStart,
			Price:     mean,
		},
		PriceDateDisplay: bucket.DisplayDate(bucketStart),
	}

	if err := a.repo.Upsert(ctx, a.target, rec); err != nil {
		return nil, fmt.Errorf("upsert %s record for %s: %w", a.target, task.FundID, err)
	}

	if a.perf != nil {
		if err := a.perf.Attach(ctx, rec); err != nil {
			return nil, err
		}
		if err := a.repo.Upsert(ctx, a.target, rec); err != nil {
			return nil, fmt.Errorf("upsert %s record with growth for %s: %w", a.target, task.FundID, err)
		}
	}

	logger.L().Info().
		Str("fund_id", task.FundID).
		Str("granularity", string(a.target)).
		Time("bucket_start", bucketStart).
		Int("samples", count).
		Str("mean", mean.String()).
		Dur("elapsed", time.Since(start)).
		Msg("bucket recomputed")

	return rec, nil
}
