package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/fundpulse/config"
	"github.com/guttosm/fundpulse/internal/aggregate"
	"github.com/guttosm/fundpulse/internal/dispatch"
	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/performance"
	"github.com/guttosm/fundpulse/internal/scheduler"
	"github.com/guttosm/fundpulse/internal/storage"
	"github.com/guttosm/fundpulse/internal/transport"
)

// receiveWait bounds each blocking receive so worker loops observe context
// cancellation promptly and back off after transport errors.
const receiveWait = 5 * time.Second

// batchDispatcher matches dispatch.Dispatcher; the loop depends on the
// interface so tests can drive it with a stub.
type batchDispatcher interface {
	Dispatch(ctx context.Context, batch []models.ChangeNotification) (dispatch.Result, error)
}

// bucketProcessor matches aggregate.Aggregator.
type bucketProcessor interface {
	Process(ctx context.Context, task models.BucketTask) (*models.AggregatedPriceRecord, error)
}

// RunDispatcher runs the change-notification dispatcher until ctx is cancelled.
//
// Behavior:
//   - Connects to Redis and reclaims in-flight messages from a previous crash.
//   - When a sweep schedule is configured, connects to PostgreSQL and starts
//     the catch-up sweep alongside the consume loop.
//   - Consumes change notifications in batches, dispatches bucket tasks, and
//     acks the batch; a dispatch failure nacks the batch for redelivery.
//
// Returns nil on clean shutdown (context cancellation).
func RunDispatcher(ctx context.Context) error {
	cfg := config.AppConfig

	queue, err := redisOpener(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer func() { _ = queue.Close() }()

	if _, err := queue.Recover(ctx, cfg.Pipeline.ChangeQueue); err != nil {
		return fmt.Errorf("recover change queue: %w", err)
	}

	disp := dispatch.NewDispatcher(queue, cfg.Pipeline)

	// The sweep is the only reason the dispatcher needs a database.
	if cfg.Pipeline.SweepSchedule != "" {
		db, err := postgresOpener(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize postgres for sweep: %w", err)
		}
		defer func() { _ = db.Close() }()

		sweeper := scheduler.NewSweeper(storage.NewPriceRepository(db), queue, cfg.Pipeline.ChangeQueue, cfg.Pipeline.SweepDays)
		cron, err := scheduler.Start(ctx, cfg.Pipeline.SweepSchedule, sweeper)
		if err != nil {
			return err
		}
		defer cron.Stop()
	}

	logger.L().Info().
		Str("queue", cfg.Pipeline.ChangeQueue).
		Int("batch_size", cfg.Pipeline.BatchSize).
		Msg("dispatcher started")

	return dispatchLoop(ctx, queue, disp, cfg.Pipeline.ChangeQueue, cfg.Pipeline.BatchSize)
}

// dispatchLoop consumes notification batches until ctx is cancelled.
//
// Poison handling: a delivery whose body does not decode is acked away
// immediately; redelivering it could never succeed. Everything else is acked
// only after the whole batch dispatched, or nacked as a unit so the transport
// redelivers it.
func dispatchLoop(ctx context.Context, consumer transport.Consumer, disp batchDispatcher, queue string, batchSize int) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		deliveries, err := consumer.ReceiveBatch(ctx, queue, batchSize, receiveWait)
		if err != nil {
			// A drain error can hand back deliveries already moved into the
			// processing list; return them to the queue instead of stranding
			// them there until the next restart's Recover.
			for _, d := range deliveries {
				_ = d.Nack(ctx)
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.L().Error().Err(err).Str("queue", queue).Msg("receive batch failed")
			if !sleepCtx(ctx, receiveWait) {
				return nil
			}
			continue
		}
		if len(deliveries) == 0 {
			continue
		}

		batch := make([]models.ChangeNotification, 0, len(deliveries))
		decoded := make([]transport.Delivery, 0, len(deliveries))
		for _, d := range deliveries {
			var n models.ChangeNotification
			if err := transport.Decode(d, &n); err != nil {
				logger.L().Warn().Err(err).Str("queue", queue).Msg("dropping undecodable change notification")
				_ = d.Ack(ctx)
				continue
			}
			batch = append(batch, n)
			decoded = append(decoded, d)
		}
		if len(batch) == 0 {
			continue
		}

		if _, err := disp.Dispatch(ctx, batch); err != nil {
			logger.L().Error().Err(err).Str("queue", queue).Msg("dispatch failed, returning batch for redelivery")
			for _, d := range decoded {
				_ = d.Nack(ctx)
			}
			continue
		}
		for _, d := range decoded {
			_ = d.Ack(ctx)
		}
	}
}

// RunAggregator runs bucket aggregation workers for one target granularity
// until ctx is cancelled.
//
// Behavior:
//   - week: consumes the weekly queue, aggregates the daily series, and
//     attaches trailing growth metrics.
//   - month: consumes the monthly queue and aggregates the configured source
//     series (daily by default) without growth metrics.
//
// cfg.Pipeline.Workers loops consume the queue concurrently; recomputation
// is idempotent, so concurrent workers need no coordination.
func RunAggregator(ctx context.Context, target models.Granularity) error {
	cfg := config.AppConfig

	db, err := postgresOpener(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize postgres: %w", err)
	}
	defer func() { _ = db.Close() }()
	repo := storage.NewPriceRepository(db)

	queue, err := redisOpener(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer func() { _ = queue.Close() }()

	var (
		taskQueue string
		source    models.Granularity
		perf      *performance.Calculator
	)
	switch target {
	case models.GranularityWeek:
		taskQueue = cfg.Pipeline.WeeklyQueue
		source = models.GranularityDay
		perf = performance.NewCalculator(repo, models.GranularityWeek)
	case models.GranularityMonth:
		taskQueue = cfg.Pipeline.MonthlyQueue
		source, err = models.ParseGranularity(cfg.Pipeline.MonthlySource)
		if err != nil {
			return fmt.Errorf("invalid monthly source: %w", err)
		}
	default:
		return fmt.Errorf("aggregator target must be week or month, got %q", target)
	}

	if _, err := queue.Recover(ctx, taskQueue); err != nil {
		return fmt.Errorf("recover %s: %w", taskQueue, err)
	}

	agg, err := aggregate.New(repo, target, source, perf)
	if err != nil {
		return err
	}

	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}

	logger.L().Info().
		Str("queue", taskQueue).
		Str("granularity", string(target)).
		Int("workers", workers).
		Msg("aggregator started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error { return aggregateLoop(gctx, queue, agg, taskQueue) })
	}
	return g.Wait()
}

// aggregateLoop consumes bucket tasks one at a time until ctx is cancelled.
// Invalid tasks are acked away as poison; processing failures nack the task
// so the transport redelivers it.
func aggregateLoop(ctx context.Context, consumer transport.Consumer, proc bucketProcessor, queue string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		d, err := consumer.Receive(ctx, queue, receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.L().Error().Err(err).Str("queue", queue).Msg("receive failed")
			if !sleepCtx(ctx, receiveWait) {
				return nil
			}
			continue
		}
		if d == nil {
			continue
		}

		var task models.BucketTask
		if err := transport.Decode(d, &task); err != nil {
			logger.L().Warn().Err(err).Str("queue", queue).Msg("dropping undecodable bucket task")
			_ = d.Ack(ctx)
			continue
		}
		if err := task.Validate(); err != nil {
			logger.L().Warn().Err(err).Str("queue", queue).Msg("dropping invalid bucket task")
			_ = d.Ack(ctx)
			continue
		}

		if _, err := proc.Process(ctx, task); err != nil {
			logger.L().Error().Err(err).
				Str("fund_id", task.FundID).
				Str("queue", queue).
				Msg("bucket task failed, returning for redelivery")
			_ = d.Nack(ctx)
			continue
		}
		_ = d.Ack(ctx)
	}
}

// sleepCtx waits d or until ctx is done; reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
