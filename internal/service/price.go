package service

import (
	"context"
	"time"

	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/storage"
)

// PriceService defines the read-side business logic for fund price series.
// This decouples HTTP handlers from data access.
type PriceService interface {
	// GetPrices returns the fund's series at the given granularity inside
	// [start, end]. Nil bounds default to the trailing month, matching the
	// behavior of the system's original price API.
	GetPrices(ctx context.Context, fundID string, g models.Granularity, start, end *time.Time) ([]models.AggregatedPriceRecord, error)
}

type priceService struct {
	repo storage.PriceRepository
}

// NewPriceService builds the read-side service on top of the store gateway.
func NewPriceService(repo storage.PriceRepository) PriceService {
	return &priceService{repo: repo}
}

func (s *priceService) GetPrices(ctx context.Context, fundID string, g models.Granularity, start, end *time.Time) ([]models.AggregatedPriceRecord, error) {
	from, to := normalizeRange(start, end, time.Now().UTC())
	return s.repo.QueryRange(ctx, fundID, g, from, to)
}

// normalizeRange fills missing bounds: a missing end is "now", a missing
// start is one month before the end.
func normalizeRange(start, end *time.Time, now time.Time) (time.Time, time.Time) {
	to := now
	if end != nil {
		to = end.UTC()
	}
	from := to.AddDate(0, -1, 0)
	if start != nil {
		from = start.UTC()
	}
	return from, to
}
