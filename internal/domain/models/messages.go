package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChangeNotification announces that a daily price was created or materially
// changed. It is emitted by the ingestion connector, consumed once by the
// change dispatcher, then discarded.
//
// Wire shape (JSON, field names shared with the legacy feed):
//
//	{"trusteeSchemeFundId": "HSBC-SuperTrust Plus-HSI", "priceDate": 1742169600000}
//
// OldPrice/NewPrice are optional; when both are present the dispatcher may
// skip the notification if they are equal (SkipUnchanged option).
type ChangeNotification struct {
	FundID    string           `json:"trusteeSchemeFundId"`
	PriceDate int64            `json:"priceDate"` // epoch millis
	OldPrice  *decimal.Decimal `json:"oldPrice,omitempty"`
	NewPrice  *decimal.Decimal `json:"newPrice,omitempty"`
}

// Date returns the notification's price date as a UTC instant.
func (n ChangeNotification) Date() time.Time {
	return time.UnixMilli(n.PriceDate).UTC()
}

// Validate reports whether the notification carries the required fields.
// Malformed notifications are dropped individually; they never fail a batch.
func (n ChangeNotification) Validate() error {
	if n.FundID == "" {
		return fmt.Errorf("change notification missing trusteeSchemeFundId")
	}
	if n.PriceDate <= 0 {
		return fmt.Errorf("change notification has invalid priceDate %d", n.PriceDate)
	}
	return nil
}

// BucketTask identifies one (fund, bucket) pair requiring recomputation.
// It exists only on a transport and has no identity beyond its fields:
// two tasks with equal fields are the same task, which is why per-batch
// deduplication is safe.
type BucketTask struct {
	FundID    string `json:"trusteeSchemeFundId"`
	PriceDate int64  `json:"priceDate"` // epoch millis aligned to bucket start
}

// Date returns the bucket start as a UTC instant.
func (t BucketTask) Date() time.Time {
	return time.UnixMilli(t.PriceDate).UTC()
}

// Validate reports whether the task carries the required fields.
func (t BucketTask) Validate() error {
	if t.FundID == "" {
		return fmt.Errorf("bucket task missing trusteeSchemeFundId")
	}
	if t.PriceDate <= 0 {
		return fmt.Errorf("bucket task has invalid priceDate %d", t.PriceDate)
	}
	return nil
}

// EpochMillis converts an instant to the epoch-millisecond representation
// used on the wire.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
