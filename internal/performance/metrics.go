package performance

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// TradingDaysPerYear annualizes daily returns.
const TradingDaysPerYear = 252

// DailyReturns returns totals[t]/totals[t-1] - 1 for consecutive values,
// dropping results that are NaN or infinite.
func DailyReturns(totals []float64) []float64 {
	if len(totals) < 2 {
		return nil
	}
	out := make([]float64, 0, len(totals)-1)
	for i := 1; i < len(totals); i++ {
		r := totals[i]/totals[i-1] - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SharpeRatio annualizes the mean and population standard deviation of the
// daily returns of totals. It is 0 with fewer than two valid returns or no
// dispersion.
func SharpeRatio(totals []float64, riskFreeRate float64) float64 {
	returns := DailyReturns(totals)
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)))
	if std == 0 {
		return 0
	}

	sharpe := (mean*TradingDaysPerYear - riskFreeRate) / (std * math.Sqrt(TradingDaysPerYear))
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		return 0
	}
	return sharpe
}

// MaxDrawdown is the largest fall from a running peak, as a fraction of that
// peak. Points while the peak is not positive are skipped. The result is
// always within [0, 1].
func MaxDrawdown(totals []float64) float64 {
	var (
		peak    = math.Inf(-1)
		maxDown float64
	)
	for _, v := range totals {
		if math.IsNaN(v) {
			continue
		}
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDown {
			maxDown = dd
		}
	}
	return math.Min(maxDown, 1)
}

// TradeStats fills the trade-derived fields of PerformanceMetrics.
// A trade wins when its realized profit is positive and loses when negative.
func TradeStats(trades []models.TradeResult) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		TotalTrades: len(trades),
		AvgProfit:   decimal.Zero,
		AvgLoss:     decimal.Zero,
		TotalProfit: decimal.Zero,
		TotalLoss:   decimal.Zero,
	}
	for _, t := range trades {
		switch {
		case t.RealizedProfit.IsPositive():
			m.WinningTrades++
			m.TotalProfit = m.TotalProfit.Add(t.RealizedProfit)
		case t.RealizedProfit.IsNegative():
			m.LosingTrades++
			m.TotalLoss = m.TotalLoss.Add(t.RealizedProfit.Abs())
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.WinningTrades > 0 {
		m.AvgProfit = m.TotalProfit.Div(decimal.NewFromInt(int64(m.WinningTrades))).Round(moneyPlaces)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = m.TotalLoss.Div(decimal.NewFromInt(int64(m.LosingTrades))).Round(moneyPlaces)
	}

	switch {
	case m.WinningTrades == 0:
		m.ProfitLossRatio = 0
	case m.LosingTrades == 0:
		m.ProfitLossRatio = math.Inf(1)
	default:
		m.ProfitLossRatio = m.AvgProfit.Div(m.AvgLoss).InexactFloat64()
	}
	return m
}
