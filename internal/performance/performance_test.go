package performance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

func day(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func balance(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }

type fakeLookup struct {
	prices map[string]decimal.Decimal // code@YYYY-MM-DD
	calls  int
}

func (f *fakeLookup) PriceAt(ctx context.Context, code string, date time.Time) (decimal.Decimal, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	if p, ok := f.prices[code+"@"+date.Format("2006-01-02")]; ok {
		return p, nil
	}
	return decimal.Zero, models.ErrPriceUnavailable
}

func ledger() []models.Transaction {
	return []models.Transaction{
		{Date: day(1), Kind: models.KindTransferIn, GrossAmount: dec("100000"), NetAmount: dec("100000"), RunningBalance: balance("100000")},
		{Date: day(1), SecurityCode: "600000", Kind: models.KindBuy, Quantity: 1000, Price: dec("10"),
			Fees: models.Fees{Commission: dec("5")}, RunningBalance: balance("89995")},
		{Date: day(2), SecurityCode: "204001", Kind: models.KindRepoLend, Quantity: 500, GrossAmount: dec("50000"), RunningBalance: balance("39995")},
		{Date: day(3), SecurityCode: "204001", Kind: models.KindRepoReturn, Quantity: 500, GrossAmount: dec("50000"), RunningBalance: balance("90005")},
		{Date: day(4), SecurityCode: "000001", Kind: models.KindStockDividend, Quantity: 100},
		{Date: day(5), SecurityCode: "600000", Kind: models.KindSell, Quantity: 1000, Price: dec("12"),
			Fees: models.Fees{Commission: dec("6")}, RunningBalance: balance("101999")},
	}
}

func TestCompute_Snapshots(t *testing.T) {
	lookup := &fakeLookup{prices: map[string]decimal.Decimal{"000001@2024-05-05": dec("8")}}
	rep, err := NewCalculator(lookup, 0.03).Compute(context.Background(), ledger())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	type row struct {
		Cash, Repo, Value, Total string
		Valued                   bool
		Unpriced                 []string
	}
	want := []row{
		{"89995", "0", "10000", "99995", true, nil},
		{"39995", "50000", "10000", "99995", true, nil},
		{"90005", "0", "10000", "100005", true, nil},
		{"90005", "0", "10000", "100005", false, []string{"000001"}},
		{"101999", "0", "800", "102799", true, nil},
	}
	if len(rep.Snapshots) != len(want) {
		t.Fatalf("snapshots = %d, want %d", len(rep.Snapshots), len(want))
	}
	for i, s := range rep.Snapshots {
		got := row{s.CashBalance.String(), s.RepoBalance.String(), s.PositionMarketValue.String(), s.TotalAssets.String(), s.Valued, s.UnpricedCodes}
		if diff := cmp.Diff(want[i], got); diff != "" {
			t.Fatalf("snapshot %d (%s) mismatch (-want +got):\n%s", i, s.Date.Format("2006-01-02"), diff)
		}
	}
}

func TestCompute_Metrics(t *testing.T) {
	lookup := &fakeLookup{prices: map[string]decimal.Decimal{"000001@2024-05-05": dec("8")}}
	rep, err := NewCalculator(lookup, 0.03).Compute(context.Background(), ledger())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	m := rep.Metrics
	if m.TotalTrades != 1 || m.WinningTrades != 1 || m.WinRate != 100 {
		t.Fatalf("trade counts = %+v", m)
	}
	if !math.IsInf(m.ProfitLossRatio, 1) {
		t.Fatalf("profit/loss ratio = %v, want +Inf without losers", m.ProfitLossRatio)
	}
	if !m.TotalProfit.Equal(dec("1989")) {
		t.Fatalf("total profit = %s, want 1989", m.TotalProfit)
	}
	if m.MaxDrawdown != 0 {
		t.Fatalf("max drawdown = %v, want 0 on a rising valued series", m.MaxDrawdown)
	}
	if m.SharpeRatio <= 0 {
		t.Fatalf("sharpe = %v, want positive", m.SharpeRatio)
	}
	if len(rep.Trades) != 1 || !rep.Trades[0].RealizedProfit.Equal(dec("1989")) {
		t.Fatalf("trades = %+v", rep.Trades)
	}
}

func TestCompute_NoLookupLeavesHoldingUnvalued(t *testing.T) {
	txs := []models.Transaction{
		{Date: day(1), SecurityCode: "000001", Kind: models.KindStockDividend, Quantity: 50, RunningBalance: balance("1000")},
	}
	rep, err := NewCalculator(nil, 0.03).Compute(context.Background(), txs)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	s := rep.Snapshots[0]
	if s.Valued || !s.PositionMarketValue.IsZero() || len(s.UnpricedCodes) != 1 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if rep.Metrics.SharpeRatio != 0 || rep.Metrics.MaxDrawdown != 0 {
		t.Fatalf("unvalued days must not feed metrics: %+v", rep.Metrics)
	}
}

func TestCompute_SameDayTradePriceWins(t *testing.T) {
	lookup := &fakeLookup{prices: map[string]decimal.Decimal{"600000@2024-05-01": dec("99")}}
	txs := []models.Transaction{
		{Date: day(1), SecurityCode: "600000", Kind: models.KindBuy, Quantity: 100, Price: dec("10")},
		{Date: day(1), SecurityCode: "600000", Kind: models.KindBuy, Quantity: 100, Price: dec("11")},
	}
	rep, err := NewCalculator(lookup, 0).Compute(context.Background(), txs)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := rep.Snapshots[0].PositionMarketValue; !got.Equal(dec("2200")) {
		t.Fatalf("market value = %s, want 200 x last trade price 11", got)
	}
	if lookup.calls != 0 {
		t.Fatalf("lookup called %d times, want 0", lookup.calls)
	}
}

func TestCompute_RejectsUnorderedInput(t *testing.T) {
	txs := []models.Transaction{
		{Date: day(2), Kind: models.KindTransferIn},
		{Date: day(1), Kind: models.KindTransferIn},
	}
	_, err := NewCalculator(nil, 0.03).Compute(context.Background(), txs)
	if !errors.Is(err, models.ErrInvalidInputOrdering) {
		t.Fatalf("want ErrInvalidInputOrdering, got %v", err)
	}
}

func TestCompute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txs := []models.Transaction{{Date: day(1), SecurityCode: "000001", Kind: models.KindStockDividend, Quantity: 10}}
	_, err := NewCalculator(&fakeLookup{}, 0.03).Compute(ctx, txs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestMatchRoundTrips_IgnoresBonusShares(t *testing.T) {
	txs := []models.Transaction{
		{Date: day(1), SecurityCode: "A", Kind: models.KindBuy, Quantity: 100, Price: dec("10")},
		{Date: day(2), SecurityCode: "A", Kind: models.KindStockDividend, Quantity: 100},
		{Date: day(3), SecurityCode: "A", Kind: models.KindSell, Quantity: 200, Price: dec("6")},
	}
	trades := MatchRoundTrips(txs)
	if len(trades) != 1 || trades[0].MatchedQuantity != 100 {
		t.Fatalf("trades = %+v, want one match of 100", trades)
	}
	if !trades[0].RealizedProfit.Equal(dec("-400")) {
		t.Fatalf("profit = %s, want -400", trades[0].RealizedProfit)
	}
}

func TestCompute_SoldBonusSharesLeaveTheBook(t *testing.T) {
	txs := []models.Transaction{
		{Date: day(1), SecurityCode: "A", Kind: models.KindStockDividend, Quantity: 100, RunningBalance: balance("1000")},
		{Date: day(2), SecurityCode: "A", Kind: models.KindSell, Quantity: 100, Price: dec("12"), RunningBalance: balance("2200")},
		{Date: day(3), Kind: models.KindInterest, GrossAmount: dec("1"), RunningBalance: balance("2201")},
	}
	rep, err := NewCalculator(nil, 0).Compute(context.Background(), txs)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, s := range rep.Snapshots[1:] {
		if !s.Valued || !s.PositionMarketValue.IsZero() || !s.TotalAssets.Equal(s.CashBalance) {
			t.Fatalf("snapshot %s still carries sold bonus shares: %+v", s.Date.Format("2006-01-02"), s)
		}
	}
}
