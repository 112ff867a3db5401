package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/logger"
	"github.com/guttosm/settlepulse/internal/performance"
	"github.com/guttosm/settlepulse/internal/pricing"
	"github.com/guttosm/settlepulse/internal/storage"
	"github.com/guttosm/settlepulse/internal/tracker"
)

// LedgerService answers accounting and performance questions over the stored
// ledger. Every call replays the full history, since lots and balances
// depend on everything before the requested window.
type LedgerService interface {
	Trades(ctx context.Context, from, to *time.Time) (tracker.Result, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Performance(ctx context.Context, from, to *time.Time) (performance.Report, error)
	Analyze(ctx context.Context, from, to *time.Time) (performance.Report, error)
	LatestPrice(ctx context.Context, code string) (models.PricePoint, error)
	RefreshPrices(ctx context.Context, codes []string, opts ...pricing.CallOption) (pricing.BulkResult, error)
}

// PriceSource is the part of pricing.Source the service needs.
type PriceSource interface {
	Latest(ctx context.Context, code string, opts ...pricing.CallOption) (decimal.Decimal, error)
	PriceAt(ctx context.Context, code string, date time.Time) (decimal.Decimal, error)
	RefreshLatest(ctx context.Context, codes []string, opts ...pricing.CallOption) (pricing.BulkResult, error)
}

// Deps groups the collaborators of the ledger service.
type Deps struct {
	Transactions storage.TransactionsRepository
	Prices       storage.PricesRepository
	Snapshots    storage.SnapshotsRepository
	Source       PriceSource
	RiskFreeRate float64
}

type ledgerService struct {
	deps Deps
	now  func() time.Time
	log  zerolog.Logger
}

// NewLedgerService returns a LedgerService over deps; Source, Prices and Snapshots may be nil.
func NewLedgerService(deps Deps) LedgerService {
	return &ledgerService{deps: deps, now: time.Now, log: logger.With("service")}
}

// history loads the whole ledger and rejects it when it is not date ordered.
func (s *ledgerService) history(ctx context.Context) ([]models.Transaction, error) {
	txs, err := s.deps.Transactions.ListTransactions(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if err := tracker.ValidateOrdering(txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Trades replays the ledger and keeps the matches whose sell date falls in
// [from, to]. Positions and anomalies always reflect the full history.
func (s *ledgerService) Trades(ctx context.Context, from, to *time.Time) (tracker.Result, error) {
	txs, err := s.history(ctx)
	if err != nil {
		return tracker.Result{}, err
	}
	res := tracker.Process(txs)

	kept := res.Trades[:0]
	for _, t := range res.Trades {
		if within(t.SellDate, from, to) {
			kept = append(kept, t)
		}
	}
	res.Trades = kept
	return res, nil
}

func (s *ledgerService) Positions(ctx context.Context) ([]models.Position, error) {
	txs, err := s.history(ctx)
	if err != nil {
		return nil, err
	}
	return tracker.Process(txs).Positions, nil
}

// Performance computes the report over the full ledger, then narrows
// snapshots and trades to [from, to] and derives the metrics of that window.
func (s *ledgerService) Performance(ctx context.Context, from, to *time.Time) (performance.Report, error) {
	txs, err := s.history(ctx)
	if err != nil {
		return performance.Report{}, err
	}

	var lookup performance.PriceLookup
	if s.deps.Source != nil {
		lookup = s.deps.Source
	}
	rep, err := performance.NewCalculator(lookup, s.deps.RiskFreeRate).Compute(ctx, txs)
	if err != nil {
		return performance.Report{}, err
	}
	if from == nil && to == nil {
		return rep, nil
	}

	var (
		snaps  []models.DailyAssetSnapshot
		trades []models.TradeResult
		totals []float64
	)
	for _, sn := range rep.Snapshots {
		if within(sn.Date, from, to) {
			snaps = append(snaps, sn)
			if sn.Valued {
				totals = append(totals, sn.TotalAssets.InexactFloat64())
			}
		}
	}
	for _, t := range rep.Trades {
		if within(t.SellDate, from, to) {
			trades = append(trades, t)
		}
	}
	metrics := performance.TradeStats(trades)
	metrics.SharpeRatio = performance.SharpeRatio(totals, s.deps.RiskFreeRate)
	metrics.MaxDrawdown = performance.MaxDrawdown(totals)

	return performance.Report{Snapshots: snaps, Metrics: metrics, Trades: trades}, nil
}

// Analyze computes Performance and persists its snapshots.
func (s *ledgerService) Analyze(ctx context.Context, from, to *time.Time) (performance.Report, error) {
	rep, err := s.Performance(ctx, from, to)
	if err != nil {
		return performance.Report{}, err
	}
	if s.deps.Snapshots != nil {
		if err := s.deps.Snapshots.SaveSnapshots(ctx, rep.Snapshots); err != nil {
			return performance.Report{}, fmt.Errorf("save snapshots: %w", err)
		}
	}
	unvalued := 0
	for _, sn := range rep.Snapshots {
		if !sn.Valued {
			unvalued++
		}
	}
	s.log.Info().
		Int("snapshots", len(rep.Snapshots)).
		Int("unvalued", unvalued).
		Int("trades", rep.Metrics.TotalTrades).
		Float64("win_rate", rep.Metrics.WinRate).
		Float64("profit_loss_ratio", rep.Metrics.ProfitLossRatio).
		Float64("sharpe", rep.Metrics.SharpeRatio).
		Float64("max_drawdown", rep.Metrics.MaxDrawdown).
		Msg("analysis stored")
	return rep, nil
}

// LatestPrice resolves the current price of code through the provider chain.
func (s *ledgerService) LatestPrice(ctx context.Context, code string) (models.PricePoint, error) {
	if s.deps.Source == nil {
		return models.PricePoint{}, models.ErrPriceUnavailable
	}
	p, err := s.deps.Source.Latest(ctx, code)
	if err != nil {
		return models.PricePoint{}, err
	}
	return models.PricePoint{Date: today(s.now()), SecurityCode: code, Close: p, Source: "live"}, nil
}

// RefreshPrices refreshes codes, or every open position when codes is
// empty, and stores what resolved. Partial results are stored even when ctx
// is canceled mid-run.
func (s *ledgerService) RefreshPrices(ctx context.Context, codes []string, opts ...pricing.CallOption) (pricing.BulkResult, error) {
	if s.deps.Source == nil {
		return pricing.BulkResult{}, models.ErrPriceUnavailable
	}
	if len(codes) == 0 {
		positions, err := s.Positions(ctx)
		if err != nil {
			return pricing.BulkResult{}, err
		}
		for _, p := range positions {
			codes = append(codes, p.SecurityCode)
		}
	}

	res, runErr := s.deps.Source.RefreshLatest(ctx, codes, opts...)

	if s.deps.Prices != nil && len(res.Prices) > 0 {
		date := today(s.now())
		points := make([]models.PricePoint, 0, len(res.Prices))
		for code, p := range res.Prices {
			points = append(points, models.PricePoint{Date: date, SecurityCode: code, Close: p, Source: "refresh"})
		}
		sort.Slice(points, func(i, j int) bool { return points[i].SecurityCode < points[j].SecurityCode })
		if err := s.deps.Prices.UpsertPrices(context.WithoutCancel(ctx), points); err != nil {
			return res, fmt.Errorf("store prices: %w", err)
		}
	}
	return res, runErr
}

func within(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
