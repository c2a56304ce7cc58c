package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/fundpulse/internal/domain/models"
)

// PriceRepository defines the contract the pipeline has with the price store.
//
// The pipeline depends on exactly two behaviors: range queries over one
// granularity table, and idempotent upserts keyed by (fund_id, price_date).
// The upsert is the unit of consistency for the whole pipeline: concurrent
// recomputes of the same bucket converge through it without any locking
// between workers.
type PriceRepository interface {
	// QueryRange returns all records for fundID in the granularity table with
	// price_date in [start, end] (inclusive), ascending by price_date.
	// An empty slice (not an error) is returned when there is no data.
	QueryRange(ctx context.Context, fundID string, g models.Granularity, start, end time.Time) ([]models.AggregatedPriceRecord, error)

	// Upsert writes the record into the granularity table, overwriting any
	// existing row with the same (fund_id, price_date). The write is atomic
	// and safely retryable. A missing FundID is derived from the record's
	// trustee/scheme/fund fields.
	Upsert(ctx context.Context, g models.Granularity, rec *models.AggregatedPriceRecord) error

	// UpsertDailyBatch writes a batch of daily price points in one
	// transaction. Used by the ingestion connector.
	UpsertDailyBatch(ctx context.Context, recs []models.AggregatedPriceRecord) error

	// ListDailySince returns the (fund_id, price_date) pairs of daily records
	// with price_date >= since. Used by the catch-up sweep to re-dispatch
	// recently touched buckets.
	ListDailySince(ctx context.Context, since time.Time) ([]models.PricePoint, error)
}

type priceRepository struct {
	db *sql.DB
}

// NewPriceRepository builds a PriceRepository backed by PostgreSQL.
func NewPriceRepository(db *sql.DB) PriceRepository {
	return &priceRepository{db: db}
}

// priceColumns is the shared column list of the three price tables.
// Growth columns exist on every table and stay NULL on the daily series.
const priceColumns = `fund_id, trustee, scheme, fund_name, price_date, price_date_display, price,
	month1_growth, month3_growth, month6_growth, month12_growth`

// QueryRange returns the ordered series for a fund inside [start, end].
func (r *priceRepository) QueryRange(ctx context.Context, fundID string, g models.Granularity, start, end time.Time) ([]models.AggregatedPriceRecord, error) {
	table := g.Table()
	if table == "" {
		return nil, fmt.Errorf("unknown granularity %q", g)
	}

	// Table names come from the Granularity enum, never from user input.
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE fund_id = $1 AND price_date BETWEEN $2 AND $3
		ORDER BY price_date ASC
	`, priceColumns, table)

	rows, err := r.db.QueryContext(ctx, query, fundID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query %s range: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.AggregatedPriceRecord
	for rows.Next() {
		var rec models.AggregatedPriceRecord
		var display sql.NullString
		if err := rows.Scan(
			&rec.FundID,
			&rec.Trustee,
			&rec.Scheme,
			&rec.FundName,
			&rec.PriceDate,
			&display,
			&rec.Price,
			&rec.Performance.Growth1M,
			&rec.Performance.Growth3M,
			&rec.Performance.Growth6M,
			&rec.Performance.Growth12M,
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		rec.PriceDate = rec.PriceDate.UTC()
		rec.PriceDateDisplay = display.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return out, nil
}

// Upsert overwrites the row for (fund_id, price_date) in the granularity table.
func (r *priceRepository) Upsert(ctx context.Context, g models.Granularity, rec *models.AggregatedPriceRecord) error {
	table := g.Table()
	if table == "" {
		return fmt.Errorf("unknown granularity %q", g)
	}

	// Derive the composite id when the caller did not set it.
	rec.FundID = models.DeriveFundID(rec.FundID, rec.Key())

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (fund_id, price_date)
		DO UPDATE SET trustee = EXCLUDED.trustee,
					  scheme = EXCLUDED.scheme,
					  fund_name = EXCLUDED.fund_name,
					  price_date_display = EXCLUDED.price_date_display,
					  price = EXCLUDED.price,
					  month1_growth = EXCLUDED.month1_growth,
					  month3_growth = EXCLUDED.month3_growth,
					  month6_growth = EXCLUDED.month6_growth,
					  month12_growth = EXCLUDED.month12_growth
	`, table, priceColumns)

	_, err := r.db.ExecContext(ctx, query,
		rec.FundID,
		rec.Trustee,
		rec.Scheme,
		rec.FundName,
		rec.PriceDate,
		nullString(rec.PriceDateDisplay),
		rec.Price,
		rec.Performance.Growth1M,
		rec.Performance.Growth3M,
		rec.Performance.Growth6M,
		rec.Performance.Growth12M,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

// UpsertDailyBatch writes a connector batch of daily points transactionally:
// either the whole file's batch lands or none of it does.
func (r *priceRepository) UpsertDailyBatch(ctx context.Context, recs []models.AggregatedPriceRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin daily batch: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (fund_id, trustee, scheme, fund_name, price_date, price_date_display, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fund_id, price_date)
		DO UPDATE SET trustee = EXCLUDED.trustee,
					  scheme = EXCLUDED.scheme,
					  fund_name = EXCLUDED.fund_name,
					  price_date_display = EXCLUDED.price_date_display,
					  price = EXCLUDED.price
	`, models.GranularityDay.Table())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare daily upsert: %w", err)
	}

	for i := range recs {
		rec := &recs[i]
		rec.FundID = models.DeriveFundID(rec.FundID, rec.Key())
		if _, err := stmt.ExecContext(ctx,
			rec.FundID,
			rec.Trustee,
			rec.Scheme,
			rec.FundName,
			rec.PriceDate,
			nullString(rec.PriceDateDisplay),
			rec.Price,
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("upsert daily %s %s: %w", rec.FundID, rec.PriceDate.Format(models.DateDisplayLayout), err)
		}
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("close daily upsert stmt: %w", err)
	}
	return tx.Commit()
}

// ListDailySince returns recent daily (fund_id, price_date) pairs for the
// catch-up sweep. Prices are included so the sweep can reuse the same
// notification shape as the live feed.
func (r *priceRepository) ListDailySince(ctx context.Context, since time.Time) ([]models.PricePoint, error) {
	query := fmt.Sprintf(`
		SELECT fund_id, price_date, price
		FROM %s
		WHERE price_date >= $1
		ORDER BY fund_id, price_date ASC
	`, models.GranularityDay.Table())

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("list daily since %s: %w", since.Format(models.DateDisplayLayout), err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var price decimal.Decimal
		if err := rows.Scan(&p.FundID, &p.PriceDate, &price); err != nil {
			return nil, fmt.Errorf("scan daily row: %w", err)
		}
		p.PriceDate = p.PriceDate.UTC()
		p.Price = price
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily rows: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
