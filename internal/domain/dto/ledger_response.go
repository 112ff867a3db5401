package dto

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// TradesResponse is returned by GET /api/v1/trades.
type TradesResponse struct {
	Trades            []models.TradeResult `json:"trades"`
	Anomalies         []models.Anomaly     `json:"anomalies"`
	HasShortSelling   bool                 `json:"has_short_selling"`
	ShortfallQuantity int64                `json:"shortfall_quantity" example:"0"`
}

// PositionResponse is one open position without its lot detail.
type PositionResponse struct {
	SecurityCode       string          `json:"security_code" example:"600000"`
	SecurityName       string          `json:"security_name,omitempty"`
	Quantity           int64           `json:"quantity" example:"1100"`
	UnattributedShares int64           `json:"unattributed_shares" example:"0"`
	CostBasis          decimal.Decimal `json:"cost_basis" swaggertype:"string" example:"10000"`
	AverageCost        decimal.Decimal `json:"average_cost" swaggertype:"string" example:"9.0909"`
	EarliestBuyDate    *time.Time      `json:"earliest_buy_date,omitempty"`
	LotCount           int             `json:"lot_count" example:"1"`
}

// PositionsResponse is returned by GET /api/v1/positions.
type PositionsResponse struct {
	Positions []PositionResponse `json:"positions"`
}

// NewPositionsResponse flattens positions for the API.
func NewPositionsResponse(positions []models.Position) PositionsResponse {
	out := PositionsResponse{Positions: make([]PositionResponse, 0, len(positions))}
	for _, p := range positions {
		r := PositionResponse{
			SecurityCode:       p.SecurityCode,
			SecurityName:       p.SecurityName,
			Quantity:           p.Quantity,
			UnattributedShares: p.UnattributedShares,
			CostBasis:          p.CostBasis,
			AverageCost:        p.AverageCost,
			LotCount:           len(p.Lots),
		}
		if !p.EarliestBuyDate.IsZero() {
			d := p.EarliestBuyDate
			r.EarliestBuyDate = &d
		}
		out.Positions = append(out.Positions, r)
	}
	return out
}

// MetricsResponse renders PerformanceMetrics for JSON. JSON has no
// infinity, so an unbounded profit/loss ratio is sent as null with
// ProfitLossUnbounded set.
type MetricsResponse struct {
	WinRatePct          float64         `json:"win_rate_pct" example:"62.5"`
	ProfitLossRatio     *float64        `json:"profit_loss_ratio" example:"1.8"`
	ProfitLossUnbounded bool            `json:"profit_loss_unbounded"`
	SharpeRatio         float64         `json:"sharpe_ratio" example:"1.12"`
	MaxDrawdownPct      float64         `json:"max_drawdown_pct" example:"12.4"`
	TotalTrades         int             `json:"total_trades" example:"16"`
	WinningTrades       int             `json:"winning_trades" example:"10"`
	LosingTrades        int             `json:"losing_trades" example:"6"`
	AvgProfit           decimal.Decimal `json:"avg_profit" swaggertype:"string"`
	AvgLoss             decimal.Decimal `json:"avg_loss" swaggertype:"string"`
	TotalProfit         decimal.Decimal `json:"total_profit" swaggertype:"string"`
	TotalLoss           decimal.Decimal `json:"total_loss" swaggertype:"string"`
}

// PerformanceResponse is returned by GET /api/v1/performance.
type PerformanceResponse struct {
	Metrics           MetricsResponse             `json:"metrics"`
	Snapshots         []models.DailyAssetSnapshot `json:"snapshots"`
	UnvaluedSnapshots int                         `json:"unvalued_snapshots" example:"0"`
}

// NewPerformanceResponse converts metrics and snapshots for the API.
func NewPerformanceResponse(m models.PerformanceMetrics, snaps []models.DailyAssetSnapshot) PerformanceResponse {
	mr := MetricsResponse{
		WinRatePct:     m.WinRate,
		SharpeRatio:    m.SharpeRatio,
		MaxDrawdownPct: m.MaxDrawdown * 100,
		TotalTrades:    m.TotalTrades,
		WinningTrades:  m.WinningTrades,
		LosingTrades:   m.LosingTrades,
		AvgProfit:      m.AvgProfit,
		AvgLoss:        m.AvgLoss,
		TotalProfit:    m.TotalProfit,
		TotalLoss:      m.TotalLoss,
	}
	if math.IsInf(m.ProfitLossRatio, 0) {
		mr.ProfitLossUnbounded = true
	} else {
		r := m.ProfitLossRatio
		mr.ProfitLossRatio = &r
	}

	resp := PerformanceResponse{Metrics: mr, Snapshots: snaps}
	if resp.Snapshots == nil {
		resp.Snapshots = []models.DailyAssetSnapshot{}
	}
	for _, s := range snaps {
		if !s.Valued {
			resp.UnvaluedSnapshots++
		}
	}
	return resp
}

// PriceResponse is returned by GET /api/v1/prices/{code}.
type PriceResponse struct {
	SecurityCode string          `json:"security_code" example:"600000"`
	Price        decimal.Decimal `json:"price" swaggertype:"string" example:"45.20"`
	Date         time.Time       `json:"date"`
	Source       string          `json:"source" example:"live"`
}
