package tracker

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func buy(d int, code string, qty int64, price, fee string) models.Transaction {
	return models.Transaction{
		Date: day(d), SecurityCode: code, Kind: models.KindBuy, Quantity: qty,
		Price: dec(price), Fees: models.Fees{Commission: dec(fee)},
	}
}

func sell(d int, code string, qty int64, price, fee string) models.Transaction {
	return models.Transaction{
		Date: day(d), SecurityCode: code, Kind: models.KindSell, Quantity: qty,
		Price: dec(price), Fees: models.Fees{Commission: dec(fee)},
	}
}

func bonus(d int, code string, qty int64) models.Transaction {
	return models.Transaction{Date: day(d), SecurityCode: code, Kind: models.KindStockDividend, Quantity: qty}
}

func TestProcess_RoundTrip(t *testing.T) {
	res := Process([]models.Transaction{
		buy(1, "600000", 1000, "10.00", "5.00"),
		sell(11, "600000", 1000, "12.00", "6.00"),
	})

	want := []models.TradeResult{{
		SecurityCode:    "600000",
		BuyDate:         day(1),
		SellDate:        day(11),
		BuyPrice:        dec("10"),
		SellPrice:       dec("12"),
		MatchedQuantity: 1000,
		CostBasis:       dec("10000"),
		Proceeds:        dec("12000"),
		FeesAllocated:   dec("11"),
		RealizedProfit:  dec("1989"),
		HoldingDays:     10,
	}}
	if diff := cmp.Diff(want, res.Trades, decimalEqual, cmpopts.IgnoreFields(models.TradeResult{}, "ProfitRate")); diff != "" {
		t.Fatalf("trades mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(res.Trades[0].ProfitRate-19.89) > 1e-9 {
		t.Fatalf("profit rate = %v, want 19.89", res.Trades[0].ProfitRate)
	}
	if len(res.Positions) != 0 || res.HasShortSelling {
		t.Fatalf("expected flat book without anomalies, got %+v", res)
	}
}

func TestProcess_StockDividendInflatesLot(t *testing.T) {
	res := Process([]models.Transaction{
		buy(1, "000001", 1000, "10.00", "0"),
		bonus(5, "000001", 100),
	})

	if len(res.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(res.Positions))
	}
	p := res.Positions[0]
	if len(p.Lots) != 1 {
		t.Fatalf("bonus must not create a lot, got %d lots", len(p.Lots))
	}
	lot := p.Lots[0]
	if lot.RemainingQuantity != 1100 || lot.OriginalQuantity != 1100 {
		t.Fatalf("lot quantities = %d/%d, want 1100/1100", lot.RemainingQuantity, lot.OriginalQuantity)
	}
	if !lot.CostBasis.Equal(dec("10000")) || !lot.RemainingCost.Equal(dec("10000")) {
		t.Fatalf("cost basis = %s remaining %s, want 10000", lot.CostBasis, lot.RemainingCost)
	}
	wantUnit := dec("10000").Div(dec("1100"))
	if !lot.UnitCost().Equal(wantUnit) {
		t.Fatalf("unit cost = %s, want %s", lot.UnitCost(), wantUnit)
	}
	if p.UnattributedShares != 0 {
		t.Fatalf("unattributed = %d, want 0", p.UnattributedShares)
	}
}

func TestProcess_StockDividendResidual(t *testing.T) {
	tr := New()
	for _, tx := range []models.Transaction{
		buy(1, "000002", 100, "5", "0"),
		buy(2, "000002", 50, "6", "0"),
		bonus(3, "000002", 20),
	} {
		tr.Apply(tx)
	}

	p := tr.Positions()[0]
	if p.Lots[0].RemainingQuantity != 113 || p.Lots[1].RemainingQuantity != 56 {
		t.Fatalf("lots = %d,%d, want 113,56", p.Lots[0].RemainingQuantity, p.Lots[1].RemainingQuantity)
	}
	if p.UnattributedShares != 1 {
		t.Fatalf("unattributed = %d, want 1", p.UnattributedShares)
	}
	if got := tr.Holdings()["000002"]; got != 170 {
		t.Fatalf("holdings = %d, want 150+20", got)
	}
}

func TestProcess_StockDividendWithoutLots(t *testing.T) {
	tr := New()
	tr.Apply(bonus(3, "000003", 40))
	if got := tr.Holdings()["000003"]; got != 40 {
		t.Fatalf("holdings = %d, want 40", got)
	}
	p := tr.Positions()
	if len(p) != 1 || p[0].Quantity != 0 || p[0].UnattributedShares != 40 {
		t.Fatalf("unexpected positions %+v", p)
	}
}

func TestProcess_SellWithoutHistory(t *testing.T) {
	res := Process([]models.Transaction{sell(4, "600519", 500, "1700", "10")})

	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(res.Trades))
	}
	if !res.HasShortSelling || res.ShortfallQuantity != 500 {
		t.Fatalf("short flag=%v shortfall=%d, want true/500", res.HasShortSelling, res.ShortfallQuantity)
	}
	if len(res.Anomalies) != 1 || res.Anomalies[0].Kind != models.AnomalyShortSell {
		t.Fatalf("unexpected anomalies %+v", res.Anomalies)
	}
	if len(res.Positions) != 0 {
		t.Fatalf("no negative lots expected, got %+v", res.Positions)
	}
}

func TestProcess_FIFOAcrossLots(t *testing.T) {
	res := Process([]models.Transaction{
		buy(1, "600000", 100, "10", "1"),
		buy(2, "600000", 100, "11", "1"),
		sell(3, "600000", 150, "12", "3"),
	})

	if len(res.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(res.Trades))
	}
	first, second := res.Trades[0], res.Trades[1]
	if !first.BuyDate.Equal(day(1)) || first.MatchedQuantity != 100 {
		t.Fatalf("first match = %+v, want oldest lot fully", first)
	}
	if !second.BuyDate.Equal(day(2)) || second.MatchedQuantity != 50 {
		t.Fatalf("second match = %+v, want 50 from second lot", second)
	}
	if got := first.MatchedQuantity + second.MatchedQuantity; got != 150 {
		t.Fatalf("matched sum = %d, want sell quantity 150", got)
	}
	// 1 + 3*100/150 and 1*50/100 + 3*50/150
	if !first.FeesAllocated.Equal(dec("3")) || !second.FeesAllocated.Equal(dec("1.5")) {
		t.Fatalf("fees = %s,%s want 3,1.5", first.FeesAllocated, second.FeesAllocated)
	}
	if !second.CostBasis.Equal(dec("550")) {
		t.Fatalf("second cost = %s, want 550", second.CostBasis)
	}
	if len(res.Positions) != 1 || res.Positions[0].Quantity != 50 {
		t.Fatalf("remaining position = %+v, want 50 shares", res.Positions)
	}
}

func TestProcess_PartialSellAndOverSell(t *testing.T) {
	cases := []struct {
		name          string
		txs           []models.Transaction
		wantMatched   int64
		wantShortfall int64
		wantProfit    string
	}{
		{
			name:        "partial sell allocates fees pro rata",
			txs:         []models.Transaction{buy(1, "A", 1000, "10", "5"), sell(2, "A", 300, "12", "3")},
			wantMatched: 300,
			wantProfit:  "595.5",
		},
		{
			name:          "over sell matches what exists",
			txs:           []models.Transaction{buy(1, "A", 100, "10", "0"), sell(2, "A", 150, "11", "0")},
			wantMatched:   100,
			wantShortfall: 50,
			wantProfit:    "100",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Process(tc.txs)
			if len(res.Trades) != 1 {
				t.Fatalf("trades = %d, want 1", len(res.Trades))
			}
			if res.Trades[0].MatchedQuantity != tc.wantMatched {
				t.Fatalf("matched = %d, want %d", res.Trades[0].MatchedQuantity, tc.wantMatched)
			}
			if res.ShortfallQuantity != tc.wantShortfall || res.HasShortSelling != (tc.wantShortfall > 0) {
				t.Fatalf("shortfall = %d (flag %v), want %d", res.ShortfallQuantity, res.HasShortSelling, tc.wantShortfall)
			}
			if !res.Trades[0].RealizedProfit.Equal(dec(tc.wantProfit)) {
				t.Fatalf("profit = %s, want %s", res.Trades[0].RealizedProfit, tc.wantProfit)
			}
		})
	}
}

func TestProcess_SellAfterBonusUsesInflatedLot(t *testing.T) {
	res := Process([]models.Transaction{
		buy(1, "000001", 1000, "11", "0"),
		bonus(2, "000001", 100),
		sell(3, "000001", 1100, "10", "0"),
	})
	if len(res.Trades) != 1 || res.Trades[0].MatchedQuantity != 1100 {
		t.Fatalf("unexpected trades %+v", res.Trades)
	}
	if !res.Trades[0].CostBasis.Equal(dec("11000")) || !res.Trades[0].RealizedProfit.Equal(dec("0")) {
		t.Fatalf("cost=%s profit=%s, want 11000/0", res.Trades[0].CostBasis, res.Trades[0].RealizedProfit)
	}
}

func TestProcess_BonusOnPartlySoldLot(t *testing.T) {
	tr := New()
	for _, tx := range []models.Transaction{
		buy(1, "600000", 1000, "10", "5"),
		sell(2, "600000", 400, "11", "0"),
		bonus(3, "600000", 60),
	} {
		tr.Apply(tx)
	}

	p := tr.Positions()
	if len(p) != 1 || p[0].Quantity != 660 || !p[0].CostBasis.Equal(dec("6000")) {
		t.Fatalf("position after bonus = %+v, want 660 shares costing 6000", p)
	}
	if lot := p[0].Lots[0]; lot.OriginalQuantity != 1060 || !lot.RemainingFees.Equal(dec("3")) {
		t.Fatalf("lot = %+v, want original 1060 and fees 3 left", lot)
	}

	tr.Apply(sell(4, "600000", 660, "12", "0"))
	res := tr.Result()
	if len(res.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(res.Trades))
	}
	cost, fees := decimal.Zero, decimal.Zero
	for _, m := range res.Trades {
		cost = cost.Add(m.CostBasis)
		fees = fees.Add(m.FeesAllocated)
	}
	if !cost.Equal(dec("10000")) || !fees.Equal(dec("5")) {
		t.Fatalf("allocated cost=%s fees=%s, want exactly the purchase 10000 and 5", cost, fees)
	}
	if !res.Trades[1].CostBasis.Equal(dec("6000")) || !res.Trades[1].RealizedProfit.Equal(dec("1917")) {
		t.Fatalf("second match = %+v, want cost 6000 profit 1917", res.Trades[1])
	}
	if len(res.Positions) != 0 || res.HasShortSelling {
		t.Fatalf("expected flat book, got %+v", res)
	}
}

func TestProcess_SellBonusWithoutLots(t *testing.T) {
	cases := []struct {
		name          string
		sellQty       int64
		wantMatched   int64
		wantShortfall int64
		wantHeld      int64
	}{
		{name: "sells the whole grant", sellQty: 100, wantMatched: 100},
		{name: "sells part of the grant", sellQty: 30, wantMatched: 30, wantHeld: 70},
		{name: "sells beyond the grant", sellQty: 150, wantMatched: 100, wantShortfall: 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := New()
			tr.Apply(bonus(3, "600000", 100))
			tr.Apply(sell(5, "600000", tc.sellQty, "12", "0"))
			res := tr.Result()

			if len(res.Trades) != 1 {
				t.Fatalf("trades = %d, want 1", len(res.Trades))
			}
			got := res.Trades[0]
			if got.MatchedQuantity != tc.wantMatched || !got.CostBasis.IsZero() || !got.BuyDate.Equal(day(3)) || got.HoldingDays != 2 {
				t.Fatalf("trade = %+v, want %d bonus shares at zero cost", got, tc.wantMatched)
			}
			if res.ShortfallQuantity != tc.wantShortfall || res.HasShortSelling != (tc.wantShortfall > 0) {
				t.Fatalf("shortfall = %d (flag %v), want %d", res.ShortfallQuantity, res.HasShortSelling, tc.wantShortfall)
			}
			if held := tr.Holdings()["600000"]; held != tc.wantHeld {
				t.Fatalf("holdings = %d, want %d", held, tc.wantHeld)
			}
		})
	}
}

func TestProcess_IgnoresCashEvents(t *testing.T) {
	res := Process([]models.Transaction{
		{Date: day(1), Kind: models.KindTransferIn, GrossAmount: dec("50000")},
		{Date: day(1), SecurityCode: "204001", Kind: models.KindRepoLend, Quantity: 10, GrossAmount: dec("1000")},
		{Date: day(2), SecurityCode: "600000", Kind: models.KindCashDividend, GrossAmount: dec("12")},
	})
	if len(res.Trades) != 0 || len(res.Positions) != 0 || res.HasShortSelling {
		t.Fatalf("cash events must not touch lots: %+v", res)
	}
}

func TestValidateOrdering(t *testing.T) {
	ordered := []models.Transaction{buy(1, "A", 1, "1", "0"), buy(1, "B", 1, "1", "0"), sell(2, "A", 1, "1", "0")}
	if err := ValidateOrdering(ordered); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	unordered := []models.Transaction{buy(2, "A", 1, "1", "0"), sell(1, "A", 1, "1", "0")}
	if err := ValidateOrdering(unordered); !errors.Is(err, models.ErrInvalidInputOrdering) {
		t.Fatalf("want ErrInvalidInputOrdering, got %v", err)
	}
}
