// Package scheduler runs the periodic catch-up sweep that heals the pipeline
// after missed change notifications.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/storage"
	"github.com/guttosm/fundpulse/internal/transport"
)

// Sweeper re-emits change notifications for every daily price observed in
// the last N days. The dispatcher dedups them into bucket tasks, and the
// aggregators recompute idempotently, so a sweep over buckets that are
// already up to date is a cheap no-op in terms of stored values.
type Sweeper struct {
	repo        storage.PriceRepository
	pub         transport.Publisher
	changeQueue string
	days        int
}

// NewSweeper builds a Sweeper covering the given number of trailing days.
func NewSweeper(repo storage.PriceRepository, pub transport.Publisher, changeQueue string, days int) *Sweeper {
	if days < 1 {
		days = 1
	}
	return &Sweeper{repo: repo, pub: pub, changeQueue: changeQueue, days: days}
}

// Run performs one sweep: list recent daily records and publish one change
// notification per (fund, day). A publish failure aborts the sweep; the next
// scheduled run covers the same window again.
func (s *Sweeper) Run(ctx context.Context) error {
	since := time.Now().UTC().AddDate(0, 0, -s.days)
	start := time.Now()

	points, err := s.repo.ListDailySince(ctx, since)
	if err != nil {
		return fmt.Errorf("sweep: list daily since %s: %w", since.Format(models.DateDisplayLayout), err)
	}

	for _, p := range points {
		n := models.ChangeNotification{
			FundID:    p.FundID,
			PriceDate: models.EpochMillis(p.PriceDate),
		}
		if err := s.pub.Publish(ctx, s.changeQueue, n); err != nil {
			return fmt.Errorf("sweep: publish change notification for %s: %w", p.FundID, err)
		}
	}

	logger.L().Info().
		Int("days", s.days).
		Int("notifications", len(points)).
		Dur("elapsed", time.Since(start)).
		Msg("catch-up sweep completed")
	return nil
}

// Start registers the sweep on the given cron schedule and starts the cron
// runner. The returned cron must be stopped by the caller on shutdown.
func Start(ctx context.Context, schedule string, s *Sweeper) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Run(ctx); err != nil {
			logger.L().Error().Err(err).Msg("catch-up sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	logger.L().Info().Str("schedule", schedule).Msg("catch-up sweep scheduled")
	return c, nil
}
