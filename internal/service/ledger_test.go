package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/pricing"
	"github.com/guttosm/settlepulse/internal/storage"
)

func day(d int) time.Time { return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubTransactions struct {
	txs []models.Transaction
	err error
}

func (s *stubTransactions) InsertTransactions(context.Context, []models.Transaction) (int, error) {
	return 0, nil
}

func (s *stubTransactions) ListTransactions(context.Context, *time.Time, *time.Time) ([]models.Transaction, error) {
	return s.txs, s.err
}

func (s *stubTransactions) HasImport(context.Context, string) (bool, error)         { return false, nil }
func (s *stubTransactions) RecordImport(context.Context, storage.ImportLogEntry) error { return nil }

type stubPrices struct {
	upserted []models.PricePoint
	err      error
}

func (s *stubPrices) UpsertPrices(_ context.Context, points []models.PricePoint) error {
	s.upserted = append(s.upserted, points...)
	return s.err
}

func (s *stubPrices) LatestPrice(context.Context, string) (models.PricePoint, error) {
	return models.PricePoint{}, storage.ErrNotFound
}

func (s *stubPrices) PriceHistory(context.Context, string, time.Time, time.Time) (models.PriceSeries, error) {
	return nil, nil
}

type stubSnapshots struct {
	saved []models.DailyAssetSnapshot
}

func (s *stubSnapshots) SaveSnapshots(_ context.Context, snaps []models.DailyAssetSnapshot) error {
	s.saved = append(s.saved, snaps...)
	return nil
}

type stubSource struct {
	latest    map[string]string
	refreshed []string
	bulkErr   error
}

func (s *stubSource) Latest(_ context.Context, code string, _ ...pricing.CallOption) (decimal.Decimal, error) {
	if p, ok := s.latest[code]; ok {
		return dec(p), nil
	}
	return decimal.Zero, models.ErrPriceUnavailable
}

func (s *stubSource) PriceAt(context.Context, string, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, models.ErrPriceUnavailable
}

func (s *stubSource) RefreshLatest(_ context.Context, codes []string, _ ...pricing.CallOption) (pricing.BulkResult, error) {
	s.refreshed = codes
	res := pricing.BulkResult{Prices: map[string]decimal.Decimal{}, Errors: map[string]error{}}
	for _, c := range codes {
		if p, ok := s.latest[c]; ok {
			res.Prices[c] = dec(p)
		} else {
			res.Errors[c] = models.ErrPriceUnavailable
		}
	}
	return res, s.bulkErr
}

func ledger() []models.Transaction {
	bal := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(s)) }
	return []models.Transaction{
		{Date: day(1), Kind: models.KindTransferIn, GrossAmount: dec("20000"), RunningBalance: bal("20000")},
		{Date: day(1), SecurityCode: "600000", Kind: models.KindBuy, Quantity: 1000, Price: dec("10"), RunningBalance: bal("10000")},
		{Date: day(2), SecurityCode: "000001", Kind: models.KindBuy, Quantity: 500, Price: dec("12"), RunningBalance: bal("4000")},
		{Date: day(3), SecurityCode: "600000", Kind: models.KindSell, Quantity: 400, Price: dec("11"), RunningBalance: bal("8400")},
		{Date: day(9), SecurityCode: "600000", Kind: models.KindSell, Quantity: 600, Price: dec("9"), RunningBalance: bal("13800")},
	}
}

func TestLedgerService_TradesAndPositions(t *testing.T) {
	svc := NewLedgerService(Deps{Transactions: &stubTransactions{txs: ledger()}})

	res, err := svc.Trades(context.Background(), nil, nil)
	if err != nil || len(res.Trades) != 2 {
		t.Fatalf("Trades = %+v, %v", res.Trades, err)
	}

	from, to := day(1), day(5)
	res, err = svc.Trades(context.Background(), &from, &to)
	if err != nil || len(res.Trades) != 1 || !res.Trades[0].SellDate.Equal(day(3)) {
		t.Fatalf("windowed trades = %+v, %v", res.Trades, err)
	}

	positions, err := svc.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 || positions[0].SecurityCode != "000001" || positions[0].Quantity != 500 {
		t.Fatalf("positions = %+v", positions)
	}
}

func TestLedgerService_RejectsUnorderedLedger(t *testing.T) {
	txs := ledger()
	txs[0], txs[4] = txs[4], txs[0]
	svc := NewLedgerService(Deps{Transactions: &stubTransactions{txs: txs}})

	if _, err := svc.Positions(context.Background()); !errors.Is(err, models.ErrInvalidInputOrdering) {
		t.Fatalf("want ErrInvalidInputOrdering, got %v", err)
	}
	if _, err := svc.Performance(context.Background(), nil, nil); !errors.Is(err, models.ErrInvalidInputOrdering) {
		t.Fatalf("want ErrInvalidInputOrdering, got %v", err)
	}
}

func TestLedgerService_RepositoryError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewLedgerService(Deps{Transactions: &stubTransactions{err: boom}})
	if _, err := svc.Trades(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("want wrapped repo error, got %v", err)
	}
}

func TestLedgerService_PerformanceWindowAndAnalyze(t *testing.T) {
	snaps := &stubSnapshots{}
	svc := NewLedgerService(Deps{
		Transactions: &stubTransactions{txs: ledger()},
		Snapshots:    snaps,
		Source:       &stubSource{},
		RiskFreeRate: 0.03,
	})

	full, err := svc.Performance(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	if len(full.Snapshots) != 4 || full.Metrics.TotalTrades != 2 {
		t.Fatalf("full report: %d snapshots, %d trades", len(full.Snapshots), full.Metrics.TotalTrades)
	}
	if full.Metrics.WinningTrades != 1 || full.Metrics.LosingTrades != 1 || full.Metrics.WinRate != 50 {
		t.Fatalf("metrics = %+v", full.Metrics)
	}

	from := day(3)
	rep, err := svc.Analyze(context.Background(), &from, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rep.Snapshots) != 2 || rep.Metrics.TotalTrades != 2 {
		t.Fatalf("window report: %d snapshots, %d trades", len(rep.Snapshots), rep.Metrics.TotalTrades)
	}
	if len(snaps.saved) != 2 {
		t.Fatalf("saved %d snapshots, want 2", len(snaps.saved))
	}
}

func TestLedgerService_LatestPrice(t *testing.T) {
	svc := NewLedgerService(Deps{Source: &stubSource{latest: map[string]string{"600000": "45.20"}}}).(*ledgerService)
	svc.now = func() time.Time { return time.Date(2024, 7, 10, 15, 4, 5, 0, time.UTC) }

	p, err := svc.LatestPrice(context.Background(), "600000")
	if err != nil || !p.Close.Equal(dec("45.20")) || !p.Date.Equal(day(10)) {
		t.Fatalf("LatestPrice = %+v, %v", p, err)
	}
	if _, err := svc.LatestPrice(context.Background(), "000001"); !errors.Is(err, models.ErrPriceUnavailable) {
		t.Fatalf("want ErrPriceUnavailable, got %v", err)
	}
}

func TestLedgerService_RefreshPrices(t *testing.T) {
	t.Run("defaults to open positions and stores resolved", func(t *testing.T) {
		src := &stubSource{latest: map[string]string{"000001": "12.5"}}
		prices := &stubPrices{}
		svc := NewLedgerService(Deps{Transactions: &stubTransactions{txs: ledger()}, Prices: prices, Source: src})

		res, err := svc.RefreshPrices(context.Background(), nil)
		if err != nil {
			t.Fatalf("RefreshPrices: %v", err)
		}
		if len(src.refreshed) != 1 || src.refreshed[0] != "000001" {
			t.Fatalf("refreshed %v, want open position 000001", src.refreshed)
		}
		if len(res.Prices) != 1 || len(prices.upserted) != 1 || prices.upserted[0].Source != "refresh" {
			t.Fatalf("res=%+v upserted=%+v", res, prices.upserted)
		}
	})

	t.Run("partial results stored on cancellation", func(t *testing.T) {
		src := &stubSource{latest: map[string]string{"600000": "10"}, bulkErr: context.Canceled}
		prices := &stubPrices{}
		svc := NewLedgerService(Deps{Prices: prices, Source: src})

		_, err := svc.RefreshPrices(context.Background(), []string{"600000", "000001"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
		if len(prices.upserted) != 1 || prices.upserted[0].SecurityCode != "600000" {
			t.Fatalf("upserted = %+v", prices.upserted)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		src := &stubSource{latest: map[string]string{"600000": "10"}}
		svc := NewLedgerService(Deps{Prices: &stubPrices{err: errors.New("db down")}, Source: src})
		if _, err := svc.RefreshPrices(context.Background(), []string{"600000"}); err == nil {
			t.Fatal("expected store error")
		}
	})
}
