package performance

import (
	"math"
	"testing"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

func TestSharpeRatio(t *testing.T) {
	cases := []struct {
		name   string
		totals []float64
		rf     float64
		want   float64
	}{
		{name: "empty", totals: nil, want: 0},
		{name: "single return", totals: []float64{100, 110}, want: 0},
		{name: "flat returns", totals: []float64{100, 100, 100, 100}, want: 0},
		{name: "zero base dropped", totals: []float64{0, 100, 110}, want: 0},
		{
			// returns +10% and -10%: mean 0, population std 0.1
			name:   "symmetric",
			totals: []float64{100, 110, 99},
			rf:     0.03,
			want:   -0.03 / (0.1 * math.Sqrt(252)),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SharpeRatio(tc.totals, tc.rf)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("SharpeRatio(%v) = %v, want %v", tc.totals, got, tc.want)
			}
		})
	}
}

func TestMaxDrawdown(t *testing.T) {
	cases := []struct {
		name   string
		totals []float64
		want   float64
	}{
		{name: "empty", want: 0},
		{name: "rising", totals: []float64{1, 2, 3}, want: 0},
		{name: "two troughs", totals: []float64{100, 120, 90, 130, 65}, want: 0.5},
		{name: "non positive peak skipped", totals: []float64{-10, -5, 0}, want: 0},
		{name: "clamped at one", totals: []float64{100, -50}, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MaxDrawdown(tc.totals)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("MaxDrawdown(%v) = %v, want %v", tc.totals, got, tc.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("drawdown %v outside [0,1]", got)
			}
		})
	}
}

func TestTradeStats(t *testing.T) {
	trade := func(p string) models.TradeResult { return models.TradeResult{RealizedProfit: dec(p)} }

	t.Run("no trades", func(t *testing.T) {
		m := TradeStats(nil)
		if m.WinRate != 0 || m.ProfitLossRatio != 0 || m.TotalTrades != 0 {
			t.Fatalf("unexpected %+v", m)
		}
	})

	t.Run("only losers", func(t *testing.T) {
		m := TradeStats([]models.TradeResult{trade("-10"), trade("-30")})
		if m.ProfitLossRatio != 0 || m.WinRate != 0 || m.LosingTrades != 2 {
			t.Fatalf("unexpected %+v", m)
		}
		if !m.AvgLoss.Equal(dec("20")) || !m.TotalLoss.Equal(dec("40")) {
			t.Fatalf("avg/total loss = %s/%s, want 20/40", m.AvgLoss, m.TotalLoss)
		}
	})

	t.Run("mixed", func(t *testing.T) {
		m := TradeStats([]models.TradeResult{trade("30"), trade("10"), trade("-10"), trade("0")})
		if m.TotalTrades != 4 || m.WinningTrades != 2 || m.LosingTrades != 1 {
			t.Fatalf("counts = %+v", m)
		}
		if m.WinRate != 50 {
			t.Fatalf("win rate = %v, want 50", m.WinRate)
		}
		if m.ProfitLossRatio != 2 {
			t.Fatalf("profit/loss ratio = %v, want 20/10", m.ProfitLossRatio)
		}
	})
}
