package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/logger"
)

// Connector file format: normalized daily fund prices as CSV.
//
//	trustee,scheme,fund,date,price
//	HSBC,SuperTrust Plus,HSI,2025-03-17,24.1530
//
// The connector layer upstream (scrapers, trustee feeds) is responsible for
// producing this normalized shape; this package only loads it.
var expectedHeader = []string{"trustee", "scheme", "fund", "date", "price"}

const priceDateLayout = "2006-01-02"

// ParseFile reads one normalized CSV price file.
//
// Behavior:
//   - The header row is validated strictly: wrong column names or order fail
//     the whole file (a malformed file is a connector bug, not bad data).
//   - Data rows are parsed tolerantly: a row with a bad date, a non-numeric
//     price, or missing key fields is logged and skipped without failing the
//     file. Sibling rows always survive a bad row.
//
// Returns:
//   - []models.AggregatedPriceRecord: parsed daily records (price date
//     normalized to 00:00 UTC, display string set).
//   - int: number of skipped rows.
//   - error: file-level failures (open, header, read).
func ParseFile(path string) ([]models.AggregatedPriceRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(expectedHeader)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header of %s: %w", path, err)
	}
	if err := validateHeader(header); err != nil {
		return nil, 0, fmt.Errorf("file %s: %w", path, err)
	}

	var (
		records []models.AggregatedPriceRecord
		skipped int
		line    = 1
	)
	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.Reader surfaces per-row field-count problems as errors;
			// treat them as skippable rows, not file failures.
			logger.L().Warn().Str("file", path).Int("line", line).Err(err).Msg("skipping unreadable row")
			skipped++
			continue
		}

		rec, err := parseRow(row)
		if err != nil {
			logger.L().Warn().Str("file", path).Int("line", line).Err(err).Msg("skipping malformed row")
			skipped++
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}

func validateHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("expected %d header columns, got %d", len(expectedHeader), len(header))
	}
	for i, want := range expectedHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

func parseRow(row []string) (models.AggregatedPriceRecord, error) {
	var rec models.AggregatedPriceRecord

	trustee := strings.TrimSpace(row[0])
	scheme := strings.TrimSpace(row[1])
	fund := strings.TrimSpace(row[2])
	if trustee == "" || scheme == "" || fund == "" {
		return rec, fmt.Errorf("missing fund key parts (trustee=%q scheme=%q fund=%q)", trustee, scheme, fund)
	}

	date, err := time.ParseInLocation(priceDateLayout, strings.TrimSpace(row[3]), time.UTC)
	if err != nil {
		return rec, fmt.Errorf("bad date %q: %w", row[3], err)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(row[4]))
	if err != nil {
		return rec, fmt.Errorf("bad price %q: %w", row[4], err)
	}
	if price.IsNegative() {
		return rec, fmt.Errorf("negative price %q", row[4])
	}

	key := models.FundKey{Trustee: trustee, Scheme: scheme, Fund: fund}
	rec = models.AggregatedPriceRecord{
		PricePoint: models.PricePoint{
			FundID:    key.ID(),
			Trustee:   trustee,
			Scheme:    scheme,
			FundName:  fund,
			PriceDate: date,
			Price:     price,
		},
		PriceDateDisplay: date.Format(priceDateLayout),
	}
	return rec, nil
}
