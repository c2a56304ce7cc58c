package aggregate

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/performance"
)

// memRepo is an in-memory PriceRepository good enough for pipeline tests:
// range queries and upserts behave like the real store.
type memRepo struct {
	tables   map[models.Granularity]map[string]models.AggregatedPriceRecord // key: fundID|millis
	upserts  int
	queryErr error
}

func newMemRepo() *memRepo {
	return &memRepo{tables: make(map[models.Granularity]map[string]models.AggregatedPriceRecord)}
}

func key(fundID string, ts time.Time) string {
	return fundID + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (m *memRepo) put(g models.Granularity, rec models.AggregatedPriceRecord) {
	t, ok := m.tables[g]
	if !ok {
		t = make(map[string]models.AggregatedPriceRecord)
		m.tables[g] = t
	}
	t[key(rec.FundID, rec.PriceDate)] = rec
}

func (m *memRepo) QueryRange(_ context.Context, fundID string, g models.Granularity, start, end time.Time) ([]models.AggregatedPriceRecord, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []models.AggregatedPriceRecord
	for _, rec := range m.tables[g] {
		if rec.FundID == fundID && !rec.PriceDate.Before(start) && !rec.PriceDate.After(end) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceDate.Before(out[j].PriceDate) })
	return out, nil
}

func (m *memRepo) Upsert(_ context.Context, g models.Granularity, rec *models.AggregatedPriceRecord) error {
	m.upserts++
	rec.FundID = models.DeriveFundID(rec.FundID, rec.Key())
	m.put(g, *rec)
	return nil
}

func (m *memRepo) UpsertDailyBatch(ctx context.Context, recs []models.AggregatedPriceRecord) error {
	for i := range recs {
		if err := m.Upsert(ctx, models.GranularityDay, &recs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memRepo) ListDailySince(_ context.Context, since time.Time) ([]models.PricePoint, error) {
	var out []models.PricePoint
	for _, rec := range m.tables[models.GranularityDay] {
		if !rec.PriceDate.Before(since) {
			out = append(out, rec.PricePoint)
		}
	}
	return out, nil
}

func daily(fundID string, date time.Time, price string) models.AggregatedPriceRecord {
	return models.AggregatedPriceRecord{
		PricePoint: models.PricePoint{
			FundID:    fundID,
			Trustee:   "HSBC",
			Scheme:    "STP",
			FundName:  "HSI",
			PriceDate: date,
			Price:     decimal.RequireFromString(price),
		},
	}
}

var monday = time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)

func weeklyTask() models.BucketTask {
	return models.BucketTask{FundID: "HSBC-STP-HSI", PriceDate: models.EpochMillis(monday)}
}

func TestNew_RejectsNonFinerSource(t *testing.T) {
	repo := newMemRepo()

	cases := []struct {
		name    string
		target  models.Granularity
		source  models.Granularity
		wantErr bool
	}{
		{"day feeds week", models.GranularityWeek, models.GranularityDay, false},
		{"day feeds month", models.GranularityMonth, models.GranularityDay, false},
		{"week feeds month", models.GranularityMonth, models.GranularityWeek, false},
		{"week cannot feed week", models.GranularityWeek, models.GranularityWeek, true},
		{"month cannot feed week", models.GranularityWeek, models.GranularityMonth, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(repo, tc.target, tc.source, nil)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcess_WeeklyMean(t *testing.T) {
	repo := newMemRepo()
	// Daily prices 10, 20, 30 inside one ISO week: the weekly average is exactly 20.
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday, "10"))
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday.AddDate(0, 0, 1), "20"))
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday.AddDate(0, 0, 2), "30"))
	// A neighboring week's point must not leak into the bucket.
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday.AddDate(0, 0, 7), "999"))

	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, nil)
	require.NoError(t, err)

	rec, err := agg.Process(context.Background(), weeklyTask())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.Price.Equal(decimal.RequireFromString("20")), "got %s", rec.Price)
	assert.Equal(t, monday, rec.PriceDate)
	assert.Equal(t, "2025-03-17", rec.PriceDateDisplay)
	assert.Equal(t, "HSBC", rec.Trustee)

	// Round-trip: the bucket query returns exactly the record just written.
	stored, err := repo.QueryRange(context.Background(), "HSBC-STP-HSI", models.GranularityWeek, monday, monday)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Price.Equal(rec.Price))
}

func TestProcess_TaskDateInsideBucketIsAligned(t *testing.T) {
	repo := newMemRepo()
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday.AddDate(0, 0, 3), "15"))

	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, nil)
	require.NoError(t, err)

	// Task dated mid-week must recompute the same bucket as a Monday task.
	task := models.BucketTask{FundID: "HSBC-STP-HSI", PriceDate: models.EpochMillis(monday.AddDate(0, 0, 3))}
	rec, err := agg.Process(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, monday, rec.PriceDate)
}

func TestProcess_Idempotent(t *testing.T) {
	repo := newMemRepo()
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday, "10.07"))
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday.AddDate(0, 0, 1), "10.11"))
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday.AddDate(0, 0, 2), "10.02"))

	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, nil)
	require.NoError(t, err)

	first, err := agg.Process(context.Background(), weeklyTask())
	require.NoError(t, err)
	second, err := agg.Process(context.Background(), weeklyTask())
	require.NoError(t, err)

	// Duplicate delivery converges: bit-identical mean both times.
	assert.Equal(t, first.Price.String(), second.Price.String())
	assert.Equal(t, first.PriceDateDisplay, second.PriceDateDisplay)
}

func TestProcess_EmptyBucketNoWrite(t *testing.T) {
	repo := newMemRepo()

	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, nil)
	require.NoError(t, err)

	rec, err := agg.Process(context.Background(), weeklyTask())
	require.NoError(t, err, "an empty bucket is a no-data outcome, not an error")
	assert.Nil(t, rec)
	assert.Zero(t, repo.upserts, "no upsert may happen for an empty bucket")
}

func TestProcess_MonthlyFromDaily(t *testing.T) {
	repo := newMemRepo()
	monthStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monthStart.AddDate(0, 0, 2), "100"))
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monthStart.AddDate(0, 0, 20), "110"))
	// April 1st belongs to the next month's bucket.
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monthStart.AddDate(0, 1, 0), "500"))

	agg, err := New(repo, models.GranularityMonth, models.GranularityDay, nil)
	require.NoError(t, err)

	task := models.BucketTask{FundID: "HSBC-STP-HSI", PriceDate: models.EpochMillis(monthStart)}
	rec, err := agg.Process(context.Background(), task)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("105")), "got %s", rec.Price)
	assert.Equal(t, monthStart, rec.PriceDate)
}

func TestProcess_WeeklyWithPerformance(t *testing.T) {
	repo := newMemRepo()
	repo.put(models.GranularityDay, daily("HSBC-STP-HSI", monday, "110"))

	// Prior weekly record one week back with price 100.
	prior := daily("HSBC-STP-HSI", monday.AddDate(0, 0, -7), "100")
	repo.put(models.GranularityWeek, prior)

	perf := performance.NewCalculator(repo, models.GranularityWeek)
	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, perf)
	require.NoError(t, err)

	rec, err := agg.Process(context.Background(), weeklyTask())
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.True(t, rec.Performance.Growth1M.Valid)
	assert.True(t, rec.Performance.Growth1M.Decimal.Equal(decimal.RequireFromString("0.1")), "got %s", rec.Performance.Growth1M.Decimal)

	// The persisted weekly record carries the growth columns.
	stored, err := repo.QueryRange(context.Background(), "HSBC-STP-HSI", models.GranularityWeek, monday, monday)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Performance.Growth1M.Valid)
}

func TestProcess_StoreErrorPropagates(t *testing.T) {
	repo := newMemRepo()
	repo.queryErr = errors.New("store down")

	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, nil)
	require.NoError(t, err)

	_, err = agg.Process(context.Background(), weeklyTask())
	assert.Error(t, err, "transient store errors surface so the task is nacked and retried")
}

func TestProcess_MalformedTask(t *testing.T) {
	repo := newMemRepo()
	agg, err := New(repo, models.GranularityWeek, models.GranularityDay, nil)
	require.NoError(t, err)

	_, err = agg.Process(context.Background(), models.BucketTask{FundID: "", PriceDate: 1})
	assert.Error(t, err)
}
