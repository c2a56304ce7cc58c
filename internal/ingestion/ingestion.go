// Package ingestion loads normalized daily fund prices into the store and
// feeds the change queue that drives the aggregation pipeline.
package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
	"github.com/guttosm/fundpulse/internal/storage"
	"github.com/guttosm/fundpulse/internal/transport"
)

const defaultMaxParallel = 4

// ProcessDirectory ingests every *.csv file in dir.
//
// Parameters:
//   - dir: directory containing normalized CSV price files.
//   - repo: price store gateway (daily upserts).
//   - pub: transport publisher for change notifications.
//   - changeQueue: queue the dispatcher consumes from.
//   - parallel: concurrent file limit (0 = min(4, NumCPU)).
//
// Behavior:
//   - Files are processed concurrently under an errgroup; the first file
//     error cancels the remaining files.
//   - Per file: parse, upsert the daily batch transactionally, then publish
//     one ChangeNotification per record. Notifications are published only
//     after the batch is durably persisted, so the dispatcher never sees a
//     change whose daily row is missing.
//   - Re-running the same directory is harmless: daily upserts overwrite
//     identical rows and downstream recomputation is idempotent.
//
// Returns:
//   - error: first error encountered (if any).
func ProcessDirectory(ctx context.Context, dir string, repo storage.PriceRepository, pub transport.Publisher, changeQueue string, parallel int) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no csv files found in %s", dir)
	}

	maxParallel := defaultMaxParallel
	if parallel > 0 {
		maxParallel = parallel
	} else if c := runtime.NumCPU(); c < maxParallel {
		maxParallel = c
	}

	logger.L().Info().Int("files", len(files)).Str("dir", dir).Int("max_parallel", maxParallel).Msg("ingestion start")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, file := range files {
		idx := i
		f := file
		g.Go(func() error {
			return processFile(gctx, idx+1, len(files), f, repo, pub, changeQueue)
		})
	}

	return g.Wait()
}

func processFile(ctx context.Context, idx, total int, path string, repo storage.PriceRepository, pub transport.Publisher, changeQueue string) error {
	start := time.Now()
	base := filepath.Base(path)
	logger.L().Info().Int("idx", idx).Int("total", total).Str("file", base).Msg("file start")

	records, skipped, err := ParseFile(path)
	if err != nil {
		logger.L().Error().Str("file", base).Err(err).Msg("file failed")
		return err
	}
	if len(records) == 0 {
		logger.L().Warn().Str("file", base).Int("skipped", skipped).Msg("file has no usable rows")
		return nil
	}

	if err := repo.UpsertDailyBatch(ctx, records); err != nil {
		logger.L().Error().Str("file", base).Err(err).Msg("daily upsert failed")
		return fmt.Errorf("file %s: upsert daily batch: %w", path, err)
	}

	// Persisted first, then announced. A publish failure fails the file so the
	// run is retried as a whole; duplicates downstream are safe.
	for _, rec := range records {
		n := models.ChangeNotification{
			FundID:    rec.FundID,
			PriceDate: models.EpochMillis(rec.PriceDate),
			NewPrice:  &rec.Price,
		}
		if err := pub.Publish(ctx, changeQueue, n); err != nil {
			logger.L().Error().Str("file", base).Err(err).Msg("change notification publish failed")
			return fmt.Errorf("file %s: publish change notification: %w", path, err)
		}
	}

	logger.L().Info().
		Int("idx", idx).
		Int("total", total).
		Str("file", base).
		Int("rows", len(records)).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("file done")
	return nil
}
