// Package tracker keeps FIFO lot queues per security and turns sells into
// realized trade results.
package tracker

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/logger"
)

const moneyPlaces = 4

var hundred = decimal.NewFromInt(100)

// Result is the outcome of one tracking pass.
type Result struct {
	Trades            []models.TradeResult `json:"trades"`
	Positions         []models.Position    `json:"positions"`
	Anomalies         []models.Anomaly     `json:"anomalies"`
	HasShortSelling   bool                 `json:"has_short_selling"`
	ShortfallQuantity int64                `json:"shortfall_quantity"`
}

// Tracker owns the lot queues of one pass. It is not safe for concurrent use
// and expects transactions in date order; it never sorts them itself.
type Tracker struct {
	lots         map[string][]models.PositionLot
	names        map[string]string
	unattributed map[string]int64
	bonusSince   map[string]time.Time
	trades       []models.TradeResult
	anomalies    []models.Anomaly
	shortfall    int64
	log          zerolog.Logger
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		lots:         make(map[string][]models.PositionLot),
		names:        make(map[string]string),
		unattributed: make(map[string]int64),
		bonusSince:   make(map[string]time.Time),
		log:          logger.With("tracker"),
	}
}

// Process runs a fresh tracker over txs.
func Process(txs []models.Transaction) Result {
	t := New()
	for _, tx := range txs {
		t.Apply(tx)
	}
	return t.Result()
}

// ValidateOrdering returns models.ErrInvalidInputOrdering when a transaction
// is dated before its predecessor. Same-day transactions keep input order.
func ValidateOrdering(txs []models.Transaction) error {
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.Before(txs[i-1].Date) {
			return fmt.Errorf("%w: %s at position %d follows %s",
				models.ErrInvalidInputOrdering, txs[i].Date.Format("2006-01-02"), i, txs[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Apply feeds one transaction. Only buys, sells and stock dividends touch lot
// state; every other kind is ignored.
func (t *Tracker) Apply(tx models.Transaction) {
	if tx.SecurityCode == "" || !tx.Kind.IsSecurityEvent() {
		return
	}
	if tx.SecurityName != "" {
		t.names[tx.SecurityCode] = tx.SecurityName
	}
	if tx.Quantity <= 0 {
		return
	}

	switch tx.Kind {
	case models.KindBuy:
		t.buy(tx)
	case models.KindStockDividend:
		t.stockDividend(tx)
	case models.KindSell:
		t.sell(tx)
	}
}

func (t *Tracker) buy(tx models.Transaction) {
	qty := decimal.NewFromInt(tx.Quantity)
	price := unitPrice(tx)
	cost := price.Mul(qty)
	fees := tx.Fees.Total()
	t.lots[tx.SecurityCode] = append(t.lots[tx.SecurityCode], models.PositionLot{
		BuyDate:           tx.Date,
		BuyPrice:          price,
		OriginalQuantity:  tx.Quantity,
		RemainingQuantity: tx.Quantity,
		CostBasis:         cost,
		Fees:              fees,
		RemainingCost:     cost,
		RemainingFees:     fees,
	})
}

// stockDividend spreads bonus shares over the live lots in proportion to
// their remaining quantity, rounding down per lot. What rounding leaves over,
// or the whole grant when no lot is open, is kept as unattributed shares.
func (t *Tracker) stockDividend(tx models.Transaction) {
	queue := t.lots[tx.SecurityCode]
	var total int64
	for _, l := range queue {
		total += l.RemainingQuantity
	}

	var attributed int64
	if total > 0 {
		for i := range queue {
			add := queue[i].RemainingQuantity * tx.Quantity / total
			queue[i].RemainingQuantity += add
			queue[i].OriginalQuantity += add
			attributed += add
		}
	}

	if residual := tx.Quantity - attributed; residual > 0 {
		if t.unattributed[tx.SecurityCode] == 0 {
			t.bonusSince[tx.SecurityCode] = tx.Date
		}
		t.unattributed[tx.SecurityCode] += residual
		t.log.Debug().
			Str("security_code", tx.SecurityCode).
			Int64("residual", residual).
			Msg("bonus shares not attributable to a lot")
	}
}

// sell consumes lots oldest first and emits one TradeResult per lot touched.
// Once the lots run out it draws on unattributed bonus shares at zero cost;
// only what is still missing after that is a shortfall.
func (t *Tracker) sell(tx models.Transaction) {
	queue := t.lots[tx.SecurityCode]
	remaining := tx.Quantity
	price := unitPrice(tx)
	sellQty := decimal.NewFromInt(tx.Quantity)
	sellFees := tx.Fees.Total()

	for remaining > 0 && len(queue) > 0 {
		lot := &queue[0]
		matched := min(remaining, lot.RemainingQuantity)

		// The last shares of a lot take whatever cost is left so rounding
		// never leaks across matches.
		cost, buyFees := lot.RemainingCost, lot.RemainingFees
		if matched < lot.RemainingQuantity {
			m := decimal.NewFromInt(matched)
			held := decimal.NewFromInt(lot.RemainingQuantity)
			cost = lot.RemainingCost.Mul(m).Div(held).Round(moneyPlaces)
			buyFees = lot.RemainingFees.Mul(m).Div(held).Round(moneyPlaces)
		}

		t.record(tx, lot.BuyDate, lot.BuyPrice, price, matched, cost, buyFees.Add(sellFees.Mul(decimal.NewFromInt(matched)).Div(sellQty)))

		lot.RemainingQuantity -= matched
		lot.RemainingCost = lot.RemainingCost.Sub(cost)
		lot.RemainingFees = lot.RemainingFees.Sub(buyFees)
		remaining -= matched
		if lot.RemainingQuantity == 0 {
			queue = queue[1:]
		}
	}
	t.lots[tx.SecurityCode] = queue

	if free := t.unattributed[tx.SecurityCode]; remaining > 0 && free > 0 {
		matched := min(remaining, free)
		t.record(tx, t.bonusSince[tx.SecurityCode], decimal.Zero, price, matched, decimal.Zero,
			sellFees.Mul(decimal.NewFromInt(matched)).Div(sellQty))
		t.unattributed[tx.SecurityCode] -= matched
		if t.unattributed[tx.SecurityCode] == 0 {
			delete(t.unattributed, tx.SecurityCode)
			delete(t.bonusSince, tx.SecurityCode)
		}
		remaining -= matched
	}

	if remaining > 0 {
		t.shortfall += remaining
		t.anomalies = append(t.anomalies, models.Anomaly{
			SecurityCode: tx.SecurityCode,
			Date:         tx.Date,
			Kind:         models.AnomalyShortSell,
			Quantity:     remaining,
			Message:      fmt.Sprintf("sell of %d exceeds tracked position by %d", tx.Quantity, remaining),
		})
		t.log.Warn().
			Str("security_code", tx.SecurityCode).
			Time("date", tx.Date).
			Int64("sell_quantity", tx.Quantity).
			Int64("shortfall", remaining).
			Msg("sell exceeds tracked position")
	}
}

func (t *Tracker) record(tx models.Transaction, buyDate time.Time, buyPrice, sellPrice decimal.Decimal, matched int64, cost, fees decimal.Decimal) {
	proceeds := sellPrice.Mul(decimal.NewFromInt(matched)).Round(moneyPlaces)
	fees = fees.Round(moneyPlaces)
	profit := proceeds.Sub(cost).Sub(fees)

	rate := 0.0
	if !cost.IsZero() {
		rate = profit.Div(cost).Mul(hundred).InexactFloat64()
	}

	t.trades = append(t.trades, models.TradeResult{
		SecurityCode:    tx.SecurityCode,
		SecurityName:    t.names[tx.SecurityCode],
		BuyDate:         buyDate,
		SellDate:        tx.Date,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		MatchedQuantity: matched,
		CostBasis:       cost,
		Proceeds:        proceeds,
		FeesAllocated:   fees,
		RealizedProfit:  profit,
		ProfitRate:      rate,
		HoldingDays:     holdingDays(buyDate, tx.Date),
	})
}

// Holdings returns the shares held per security, lots plus unattributed
// bonus shares. Securities with nothing held are omitted.
func (t *Tracker) Holdings() map[string]int64 {
	out := make(map[string]int64)
	for code, queue := range t.lots {
		for _, l := range queue {
			out[code] += l.RemainingQuantity
		}
	}
	for code, n := range t.unattributed {
		out[code] += n
	}
	for code, n := range out {
		if n == 0 {
			delete(out, code)
		}
	}
	return out
}

// Positions exports the open lots, sorted by security code.
func (t *Tracker) Positions() []models.Position {
	codes := make(map[string]struct{})
	for code, queue := range t.lots {
		if len(queue) > 0 {
			codes[code] = struct{}{}
		}
	}
	for code, n := range t.unattributed {
		if n > 0 {
			codes[code] = struct{}{}
		}
	}

	out := make([]models.Position, 0, len(codes))
	for code := range codes {
		queue := t.lots[code]
		p := models.Position{
			SecurityCode:       code,
			SecurityName:       t.names[code],
			UnattributedShares: t.unattributed[code],
			CostBasis:          decimal.Zero,
			AverageCost:        decimal.Zero,
			Lots:               append([]models.PositionLot(nil), queue...),
		}
		for _, l := range queue {
			p.Quantity += l.RemainingQuantity
			p.CostBasis = p.CostBasis.Add(l.RemainingCost)
		}
		p.CostBasis = p.CostBasis.Round(moneyPlaces)
		if len(queue) > 0 {
			p.EarliestBuyDate = queue[0].BuyDate
		}
		if p.Quantity > 0 {
			p.AverageCost = p.CostBasis.Div(decimal.NewFromInt(p.Quantity)).Round(moneyPlaces)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SecurityCode < out[j].SecurityCode })
	return out
}

// Result snapshots the pass so far.
func (t *Tracker) Result() Result {
	return Result{
		Trades:            append([]models.TradeResult(nil), t.trades...),
		Positions:         t.Positions(),
		Anomalies:         append([]models.Anomaly(nil), t.anomalies...),
		HasShortSelling:   t.shortfall > 0,
		ShortfallQuantity: t.shortfall,
	}
}

// unitPrice prefers the reported price and falls back to gross/quantity for
// exports that leave the price column blank.
func unitPrice(tx models.Transaction) decimal.Decimal {
	if tx.Price.IsPositive() || tx.Quantity == 0 {
		return tx.Price
	}
	return tx.GrossAmount.Div(decimal.NewFromInt(tx.Quantity))
}

func holdingDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
