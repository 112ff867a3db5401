package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/settlepulse/internal/domain/dto"
	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/ingestion"
	"github.com/guttosm/settlepulse/internal/service"
)

// Handler exposes the ledger service over HTTP.
//
// Responsibilities:
//   - Validate query and path parameters
//   - Call the ledger service with the request context
//   - Map results to response DTOs and errors to status codes
type Handler struct {
	svc service.LedgerService
}

// NewHandler constructs a Handler.
func NewHandler(svc service.LedgerService) *Handler {
	return &Handler{svc: svc}
}

// GetTrades godoc
// @Summary      Realized trades
// @Description  FIFO matched round trips whose sell date is inside the optional window, with tracking anomalies
// @Tags         ledger
// @Produce      json
// @Param        from  query     string  false  "Start date YYYY-MM-DD"  example(2024-01-01)
// @Param        to    query     string  false  "End date YYYY-MM-DD"    example(2024-12-31)
// @Success      200   {object}  dto.TradesResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse  "Ledger is not date ordered"
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /api/v1/trades [get]
func (h *Handler) GetTrades(c *gin.Context) {
	from, to, ok := dateWindow(c)
	if !ok {
		return
	}

	res, err := h.svc.Trades(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, "failed to compute trades", err)
		return
	}

	resp := dto.TradesResponse{
		Trades:            res.Trades,
		Anomalies:         res.Anomalies,
		HasShortSelling:   res.HasShortSelling,
		ShortfallQuantity: res.ShortfallQuantity,
	}
	if resp.Trades == nil {
		resp.Trades = []models.TradeResult{}
	}
	if resp.Anomalies == nil {
		resp.Anomalies = []models.Anomaly{}
	}
	c.JSON(http.StatusOK, resp)
}

// GetPositions godoc
// @Summary      Open positions
// @Description  Current lots per security after replaying the whole ledger
// @Tags         ledger
// @Produce      json
// @Success      200  {object}  dto.PositionsResponse
// @Failure      409  {object}  dto.ErrorResponse  "Ledger is not date ordered"
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/v1/positions [get]
func (h *Handler) GetPositions(c *gin.Context) {
	positions, err := h.svc.Positions(c.Request.Context())
	if err != nil {
		respondError(c, "failed to compute positions", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPositionsResponse(positions))
}

// GetPerformance godoc
// @Summary      Performance metrics
// @Description  Daily asset snapshots and win rate, profit/loss ratio, Sharpe ratio and max drawdown for the window
// @Tags         ledger
// @Produce      json
// @Param        from  query     string  false  "Start date YYYY-MM-DD"  example(2024-01-01)
// @Param        to    query     string  false  "End date YYYY-MM-DD"    example(2024-12-31)
// @Success      200   {object}  dto.PerformanceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse  "Ledger is not date ordered"
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /api/v1/performance [get]
func (h *Handler) GetPerformance(c *gin.Context) {
	from, to, ok := dateWindow(c)
	if !ok {
		return
	}

	rep, err := h.svc.Performance(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, "failed to compute performance", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPerformanceResponse(rep.Metrics, rep.Snapshots))
}

// GetPrice godoc
// @Summary      Latest price
// @Description  Resolves the latest price of a security through the ranked provider chain
// @Tags         prices
// @Produce      json
// @Param        code  path      string  true  "Security code"  example(600000)
// @Success      200   {object}  dto.PriceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse  "No provider could price the security"
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /api/v1/prices/{code} [get]
func (h *Handler) GetPrice(c *gin.Context) {
	code := ingestion.NormalizeCode(strings.TrimSpace(c.Param("code")))
	if code == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("code is required", nil))
		return
	}

	p, err := h.svc.LatestPrice(c.Request.Context(), code)
	if err != nil {
		respondError(c, fmt.Sprintf("no price for %s", code), err)
		return
	}
	c.JSON(http.StatusOK, dto.PriceResponse{
		SecurityCode: p.SecurityCode,
		Price:        p.Close,
		Date:         p.Date,
		Source:       p.Source,
	})
}

// dateWindow parses the optional from/to query parameters. On a bad value it
// writes a 400 and returns ok=false.
func dateWindow(c *gin.Context) (from, to *time.Time, ok bool) {
	parse := func(name string) (*time.Time, bool) {
		s := strings.TrimSpace(c.Query(name))
		if s == "" {
			return nil, true
		}
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse(fmt.Sprintf("invalid %s format, expected YYYY-MM-DD", name), err))
			return nil, false
		}
		return &d, true
	}

	if from, ok = parse("from"); !ok {
		return nil, nil, false
	}
	if to, ok = parse("to"); !ok {
		return nil, nil, false
	}
	if from != nil && to != nil && to.Before(*from) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("to must not be before from", nil))
		return nil, nil, false
	}
	return from, to, true
}

// respondError maps domain errors to status codes.
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrPriceUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInputOrdering):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, dto.NewErrorResponse(message, err))
}
