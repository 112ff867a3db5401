package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionLot is a quantity of one security bought at one date and price.
//
// CostBasis and Fees belong to the whole original purchase. RemainingCost and
// RemainingFees are the part still carried by RemainingQuantity; sells take
// their share of those pro rata and reduce them. Bonus shares raise both
// quantities without touching any amount, which lowers the per-unit cost.
type PositionLot struct {
	BuyDate           time.Time       `json:"buy_date"`
	BuyPrice          decimal.Decimal `json:"buy_price"`
	OriginalQuantity  int64           `json:"original_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	Fees              decimal.Decimal `json:"fees"`
	RemainingCost     decimal.Decimal `json:"remaining_cost"`
	RemainingFees     decimal.Decimal `json:"remaining_fees"`
}

// UnitCost is the cost basis per remaining share after any bonus inflation.
func (l PositionLot) UnitCost() decimal.Decimal {
	if l.RemainingQuantity == 0 {
		return decimal.Zero
	}
	return l.RemainingCost.Div(decimal.NewFromInt(l.RemainingQuantity))
}

// Position summarizes the open lots of one security.
type Position struct {
	SecurityCode       string          `json:"security_code"`
	SecurityName       string          `json:"security_name"`
	Quantity           int64           `json:"quantity"`
	UnattributedShares int64           `json:"unattributed_shares"`
	CostBasis          decimal.Decimal `json:"cost_basis"`
	AverageCost        decimal.Decimal `json:"average_cost"`
	EarliestBuyDate    time.Time       `json:"earliest_buy_date"`
	Lots               []PositionLot   `json:"lots"`
}

// TradeResult is a closed round trip: part of one sell matched against one lot.
type TradeResult struct {
	SecurityCode    string          `json:"security_code"`
	SecurityName    string          `json:"security_name"`
	BuyDate         time.Time       `json:"buy_date"`
	SellDate        time.Time       `json:"sell_date"`
	BuyPrice        decimal.Decimal `json:"buy_price"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	MatchedQuantity int64           `json:"matched_quantity"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	FeesAllocated   decimal.Decimal `json:"fees_allocated"`
	RealizedProfit  decimal.Decimal `json:"realized_profit"`
	ProfitRate      float64         `json:"profit_rate"` // percent of cost basis
	HoldingDays     int             `json:"holding_days"`
}

// AnomalyShortSell marks a sell that found fewer shares than it needed.
const AnomalyShortSell = "short_sell"

// Anomaly is an accounting irregularity recorded on a tracking result instead
// of being raised as an error.
type Anomaly struct {
	SecurityCode string    `json:"security_code"`
	Date         time.Time `json:"date"`
	Kind         string    `json:"kind"`
	Quantity     int64     `json:"quantity"`
	Message      string    `json:"message"`
}
