package dto

// PriceEntry is one price sample in a fund price series response.
//
// Growth fields are pointers: a nil growth means the trailing window had no
// data (distinct from a 0.0 growth). Prices and ratios are serialized as
// strings to avoid binary floating-point artifacts in the JSON surface.
type PriceEntry struct {
	PriceDate        int64   `json:"priceDate" example:"1742169600000"` // epoch millis
	PriceDateDisplay string  `json:"priceDateDisplay" example:"2025-03-17"`
	Price            string  `json:"price" example:"123.4567"`
	Growth1M         *string `json:"month1Growth,omitempty" example:"0.1"`
	Growth3M         *string `json:"month3Growth,omitempty"`
	Growth6M         *string `json:"month6Growth,omitempty"`
	Growth12M        *string `json:"month12Growth,omitempty"`
}

// PriceSeriesResponse represents the JSON structure returned by the
// GET /api/v1/funds/:id/prices endpoint.
//
// Fields match the API contract and may differ from internal domain models.
// This ensures loose coupling between the API surface and business logic.
type PriceSeriesResponse struct {
	FundID   string       `json:"trusteeSchemeFundId" example:"HSBC-SuperTrust Plus-HSI"`
	Trustee  string       `json:"trustee" example:"HSBC"`
	Scheme   string       `json:"scheme" example:"SuperTrust Plus"`
	FundName string       `json:"fundName" example:"HSI"`
	Period   string       `json:"period" example:"W"` // D, W or M
	Prices   []PriceEntry `json:"prices"`
}
