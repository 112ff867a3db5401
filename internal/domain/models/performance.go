package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyAssetSnapshot is the reconstructed account value at the end of one
// activity date. When Valued is false at least one held security could not be
// priced and TotalAssets excludes it; such snapshots are left out of return
// and drawdown series.
type DailyAssetSnapshot struct {
	Date                time.Time       `json:"date"`
	CashBalance         decimal.Decimal `json:"cash_balance"`
	RepoBalance         decimal.Decimal `json:"repo_balance"`
	PositionMarketValue decimal.Decimal `json:"position_market_value"`
	TotalAssets         decimal.Decimal `json:"total_assets"`
	Valued              bool            `json:"valued"`
	UnpricedCodes       []string        `json:"unpriced_codes,omitempty"`
}

// PerformanceMetrics are derived from closed trades and the snapshot series.
//
// WinRate is a percentage. MaxDrawdown is a fraction in [0, 1].
// ProfitLossRatio is +Inf when there are winners and no losers.
type PerformanceMetrics struct {
	WinRate         float64         `json:"win_rate"`
	ProfitLossRatio float64         `json:"profit_loss_ratio"`
	SharpeRatio     float64         `json:"sharpe_ratio"`
	MaxDrawdown     float64         `json:"max_drawdown"`
	TotalTrades     int             `json:"total_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	AvgProfit       decimal.Decimal `json:"avg_profit"`
	AvgLoss         decimal.Decimal `json:"avg_loss"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalLoss       decimal.Decimal `json:"total_loss"`
}

// PricePoint is one close price of a security.
type PricePoint struct {
	Date         time.Time       `json:"date"`
	SecurityCode string          `json:"security_code"`
	Close        decimal.Decimal `json:"close"`
	Source       string          `json:"source"`
}

// PriceSeries is a date-ascending list of price points.
type PriceSeries []PricePoint

// Last returns the most recent point, if any.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// At returns the close on date or, failing that, the latest close before it.
func (s PriceSeries) At(date time.Time) (PricePoint, bool) {
	var best PricePoint
	found := false
	for _, p := range s {
		if p.Date.After(date) {
			break
		}
		best, found = p, true
	}
	return best, found
}
