package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/guttosm/fundpulse/internal/domain/dto"
	"github.com/guttosm/fundpulse/internal/domain/models"
	"github.com/guttosm/fundpulse/internal/service"
)

// Handler provides HTTP handlers for fund price series endpoints.
//
// Responsibilities:
//   - Validate incoming HTTP path and query parameters
//   - Interact with the service layer for data access
//   - Translate service results into response DTOs
//   - Return structured JSON responses with appropriate HTTP status codes
type Handler struct {
	svc service.PriceService
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - svc (service.PriceService): Service dependency used for querying price data.
//
// Returns:
//   - *Handler: A handler ready to be registered with the router.
func NewHandler(svc service.PriceService) *Handler {
	return &Handler{svc: svc}
}

// GetPrices handles GET /api/v1/funds/:id/prices requests.
//
// Path Parameters:
//   - id (string, required): Composite fund identifier "trustee-scheme-fund".
//
// Query Parameters:
//   - period (string, optional): Series granularity "D", "W" or "M". Default: "W".
//   - start (string, optional): Range start in YYYY-MM-DD format.
//   - end (string, optional): Range end in YYYY-MM-DD format.
//
// When no range is given, the trailing month ending now is returned.
//
// Responses:
//   - 200 OK: Returns PriceSeriesResponse with the ordered series.
//   - 400 Bad Request: Missing or invalid parameters.
//   - 404 Not Found: No prices stored for the fund in the range.
//   - 500 Internal Server Error: Failure in the service or database layer.
//
// GetPrices godoc
// @Summary      Get fund price series
// @Description  Returns the stored price series (with trailing growth on the weekly series) for one fund
// @Tags         prices
// @Accept       json
// @Produce      json
// @Param        id      path      string  true   "Fund id (trustee-scheme-fund)"  example(HSBC-SuperTrust Plus-HSI)
// @Param        period  query     string  false  "Granularity: D, W or M"         example(W)
// @Param        start   query     string  false  "Start date in YYYY-MM-DD"       example(2025-01-01)
// @Param        end     query     string  false  "End date in YYYY-MM-DD"         example(2025-03-31)
// @Success      200     {object}  dto.PriceSeriesResponse  "Success"
// @Failure      400     {object}  dto.ErrorResponse        "Bad Request"
// @Failure      404     {object}  dto.ErrorResponse        "Not Found"
// @Failure      500     {object}  dto.ErrorResponse        "Internal Error"
// @Router       /api/v1/funds/{id}/prices [get]
func (h *Handler) GetPrices(c *gin.Context) {
	fundID := strings.TrimSpace(c.Param("id"))
	if fundID == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("fund id is required", nil))
		return
	}

	granularity, err := models.ParseGranularity(c.DefaultQuery("period", "W"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid period, expected D, W or M", err))
		return
	}

	start, err := parseDateParam(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid start format, expected YYYY-MM-DD", err))
		return
	}
	end, err := parseDateParam(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid end format, expected YYYY-MM-DD", err))
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("end must not be before start", nil))
		return
	}

	records, err := h.svc.GetPrices(c.Request.Context(), fundID, granularity, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to fetch prices", err))
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse("no data found", nil))
		return
	}

	c.JSON(http.StatusOK, toSeriesResponse(fundID, granularity, records))
}

// parseDateParam parses an optional YYYY-MM-DD query value into a UTC instant.
func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	parsed, err := time.Parse(models.DateDisplayLayout, s)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// toSeriesResponse maps stored records onto the wire DTO. Growth ratios come
// out as string pointers: nil means the trailing window had no data.
func toSeriesResponse(fundID string, g models.Granularity, records []models.AggregatedPriceRecord) dto.PriceSeriesResponse {
	resp := dto.PriceSeriesResponse{
		FundID:   fundID,
		Trustee:  records[0].Trustee,
		Scheme:   records[0].Scheme,
		FundName: records[0].FundName,
		Period:   periodCode(g),
		Prices:   make([]dto.PriceEntry, 0, len(records)),
	}
	for _, rec := range records {
		resp.Prices = append(resp.Prices, dto.PriceEntry{
			PriceDate:        models.EpochMillis(rec.PriceDate),
			PriceDateDisplay: rec.PriceDateDisplay,
			Price:            rec.Price.String(),
			Growth1M:         growthString(rec.Performance.Growth1M),
			Growth3M:         growthString(rec.Performance.Growth3M),
			Growth6M:         growthString(rec.Performance.Growth6M),
			Growth12M:        growthString(rec.Performance.Growth12M),
		})
	}
	return resp
}

func periodCode(g models.Granularity) string {
	switch g {
	case models.GranularityDay:
		return "D"
	case models.GranularityWeek:
		return "W"
	case models.GranularityMonth:
		return "M"
	}
	return ""
}

func growthString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
