// Package dispatch turns batches of daily price change notifications into
// deduplicated bucket recompute tasks.
package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/guttosm/fundpulse/config"
	"github.com/guttosm/fundpulse/internal/bucket"
	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/transport"
)

// Dispatcher consumes a batch of ChangeNotification and emits one BucketTask
// per distinct (fund, bucket) pair to the weekly and monthly queues.
//
// Dedup happens in per-invocation maps, so the dispatch count per batch is
// bounded by the number of distinct (fund, bucket) pairs touched, not by the
// notification count. No state crosses batch boundaries.
type Dispatcher struct {
	pub           transport.Publisher
	weeklyQueue   string
	monthlyQueue  string
	skipUnchanged bool
}

// NewDispatcher builds a Dispatcher publishing to the configured queues.
func NewDispatcher(pub transport.Publisher, cfg config.PipelineConfig) *Dispatcher {
	return &Dispatcher{
		pub:           pub,
		weeklyQueue:   cfg.WeeklyQueue,
		monthlyQueue:  cfg.MonthlyQueue,
		skipUnchanged: cfg.SkipUnchanged,
	}
}

// Result summarizes one dispatched batch.
type Result struct {
	Weekly  int // weekly bucket tasks published
	Monthly int // monthly bucket tasks published
	Skipped int // notifications suppressed because the price did not change
	Dropped int // malformed notifications dropped
}

// bucketSet maps fund id to the distinct bucket-start instants (epoch millis)
// seen in one batch. Set semantics guarantee each (fund, bucket) pair is
// dispatched at most once per batch.
type bucketSet map[string]map[int64]struct{}

func (s bucketSet) add(fundID string, start int64) {
	buckets, ok := s[fundID]
	if !ok {
		buckets = make(map[int64]struct{})
		s[fundID] = buckets
	}
	buckets[start] = struct{}{}
}

func (s bucketSet) tasks() []models.BucketTask {
	var out []models.BucketTask
	for fundID, buckets := range s {
		for start := range buckets {
			out = append(out, models.BucketTask{FundID: fundID, PriceDate: start})
		}
	}
	return out
}

// Dispatch processes one batch of change notifications.
//
// Behavior:
//   - Malformed notifications are logged and dropped; they never fail the batch.
//   - With SkipUnchanged enabled, notifications carrying equal old/new prices
//     are suppressed (the recompute would be a no-op).
//   - Each remaining notification contributes its week and month bucket start
//     to the per-batch dedup sets.
//   - One BucketTask per (fund, bucket) entry is published to the weekly and
//     monthly queues; the two queues are published concurrently.
//
// Failure semantics: any publish error fails the whole batch so the transport
// redelivers it. Re-dispatching already-published siblings is safe because
// bucket recomputation downstream is idempotent.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []models.ChangeNotification) (Result, error) {
	var res Result
	if len(batch) == 0 {
		return res, nil
	}

	batchID := uuid.NewString()
	weekly := make(bucketSet)
	monthly := make(bucketSet)

	for _, n := range batch {
		if err := n.Validate(); err != nil {
			logger.L().Warn().Str("batch_id", batchID).Err(err).Msg("dropping malformed change notification")
			res.Dropped++
			continue
		}
		if d.skipUnchanged && n.OldPrice != nil && n.NewPrice != nil && n.OldPrice.Equal(*n.NewPrice) {
			res.Skipped++
			continue
		}

		date := n.Date()
		weekly.add(n.FundID, models.EpochMillis(bucket.WeekStart(date)))
		monthly.add(n.FundID, models.EpochMillis(bucket.MonthStart(date)))
	}

	weeklyTasks := weekly.tasks()
	monthlyTasks := monthly.tasks()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.publishAll(gctx, d.weeklyQueue, weeklyTasks) })
	g.Go(func() error { return d.publishAll(gctx, d.monthlyQueue, monthlyTasks) })
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("dispatch batch %s: %w", batchID, err)
	}

	res.Weekly = len(weeklyTasks)
	res.Monthly = len(monthlyTasks)

	logger.L().Info().
		Str("batch_id", batchID).
		Int("notifications", len(batch)).
		Int("weekly_tasks", res.Weekly).
		Int("monthly_tasks", res.Monthly).
		Int("skipped", res.Skipped).
		Int("dropped", res.Dropped).
		Msg("batch dispatched")

	return res, nil
}

func (d *Dispatcher) publishAll(ctx context.Context, queue string, tasks []models.BucketTask) error {
	for _, task := range tasks {
		if err := d.pub.Publish(ctx, queue, task); err != nil {
			return fmt.Errorf("publish task %s/%d to %s: %w", task.FundID, task.PriceDate, queue, err)
		}
	}
	return nil
}
