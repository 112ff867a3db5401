package performance

import (
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

type openBuy struct {
	tx        models.Transaction
	remaining int64
}

// MatchRoundTrips pairs sells with earlier buys of the same security, oldest
// first, and returns one TradeResult per pair. Only buys and sells take part:
// stock dividends are ignored here, unlike in the tracker, so a sell of bonus
// shares only matches what was bought. Unmatched sell quantity is dropped.
func MatchRoundTrips(txs []models.Transaction) []models.TradeResult {
	open := make(map[string][]openBuy)
	var out []models.TradeResult

	for _, tx := range txs {
		if tx.SecurityCode == "" || tx.Quantity <= 0 {
			continue
		}
		switch tx.Kind {
		case models.KindBuy:
			open[tx.SecurityCode] = append(open[tx.SecurityCode], openBuy{tx: tx, remaining: tx.Quantity})
		case models.KindSell:
			queue := open[tx.SecurityCode]
			left := tx.Quantity
			for left > 0 && len(queue) > 0 {
				b := &queue[0]
				matched := min(left, b.remaining)
				out = append(out, pair(b.tx, tx, matched))
				b.remaining -= matched
				left -= matched
				if b.remaining == 0 {
					queue = queue[1:]
				}
			}
			open[tx.SecurityCode] = queue
		}
	}
	return out
}

func pair(b, s models.Transaction, matched int64) models.TradeResult {
	m := decimal.NewFromInt(matched)
	cost := b.Price.Mul(m).Round(moneyPlaces)
	proceeds := s.Price.Mul(m).Round(moneyPlaces)
	fees := b.Fees.Total().Mul(m).Div(decimal.NewFromInt(b.Quantity)).
		Add(s.Fees.Total().Mul(m).Div(decimal.NewFromInt(s.Quantity))).
		Round(moneyPlaces)
	profit := proceeds.Sub(cost).Sub(fees)

	rate := 0.0
	if !cost.IsZero() {
		rate = profit.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	name := s.SecurityName
	if name == "" {
		name = b.SecurityName
	}
	return models.TradeResult{
		SecurityCode:    s.SecurityCode,
		SecurityName:    name,
		BuyDate:         b.Date,
		SellDate:        s.Date,
		BuyPrice:        b.Price,
		SellPrice:       s.Price,
		MatchedQuantity: matched,
		CostBasis:       cost,
		Proceeds:        proceeds,
		FeesAllocated:   fees,
		RealizedProfit:  profit,
		ProfitRate:      rate,
		HoldingDays:     int(s.Date.Sub(b.Date).Hours() / 24),
	}
}
