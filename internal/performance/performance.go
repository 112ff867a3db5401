// Package performance rebuilds the daily asset history of the account and
// derives risk and trade statistics from it.
package performance

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/logger"
	"github.com/guttosm/settlepulse/internal/tracker"
)

const moneyPlaces = 4

// PriceLookup marks a security on a date when the ledger has no trade price
// for it. Implementations return models.ErrPriceUnavailable when they cannot.
type PriceLookup interface {
	PriceAt(ctx context.Context, code string, date time.Time) (decimal.Decimal, error)
}

// Report is everything one analysis run produces.
type Report struct {
	Snapshots []models.DailyAssetSnapshot `json:"snapshots"`
	Metrics   models.PerformanceMetrics   `json:"metrics"`
	Trades    []models.TradeResult        `json:"trades"`
}

// Calculator computes a Report from the full transaction history.
type Calculator struct {
	lookup       PriceLookup
	riskFreeRate float64
	log          zerolog.Logger
}

// NewCalculator builds a calculator. lookup may be nil, in which case a
// security without any ledger price leaves its snapshot unvalued.
func NewCalculator(lookup PriceLookup, riskFreeRate float64) *Calculator {
	return &Calculator{lookup: lookup, riskFreeRate: riskFreeRate, log: logger.With("performance")}
}

// Compute rebuilds one snapshot per activity date and the metrics.
//
// Behavior:
//   - Cash is the last running balance reported that day, carried forward
//     from earlier days when the day reports none.
//   - Repo balance is cumulative RepoLend minus RepoReturn gross amounts.
//   - Holdings come from an incremental tracker pass. Each is marked at the
//     same-day trade price, else the latest earlier trade price, else the
//     PriceLookup. A security that cannot be priced makes the snapshot
//     unvalued; it is never counted as zero.
//   - Sharpe ratio and drawdown use valued snapshots only.
//   - Win rate and profit/loss ratio come from an independent FIFO matching
//     of buys and sells.
//
// txs must be in date order; otherwise models.ErrInvalidInputOrdering.
func (c *Calculator) Compute(ctx context.Context, txs []models.Transaction) (Report, error) {
	if err := tracker.ValidateOrdering(txs); err != nil {
		return Report{}, err
	}

	snapshots, err := c.snapshots(ctx, txs)
	if err != nil {
		return Report{}, err
	}

	trades := MatchRoundTrips(txs)
	metrics := TradeStats(trades)

	totals := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Valued {
			totals = append(totals, s.TotalAssets.InexactFloat64())
		}
	}
	metrics.SharpeRatio = SharpeRatio(totals, c.riskFreeRate)
	metrics.MaxDrawdown = MaxDrawdown(totals)

	c.log.Info().
		Int("transactions", len(txs)).
		Int("snapshots", len(snapshots)).
		Int("valued_snapshots", len(totals)).
		Int("trades", metrics.TotalTrades).
		Float64("win_rate", metrics.WinRate).
		Float64("sharpe", metrics.SharpeRatio).
		Float64("max_drawdown", metrics.MaxDrawdown).
		Msg("performance computed")

	return Report{Snapshots: snapshots, Metrics: metrics, Trades: trades}, nil
}

func (c *Calculator) snapshots(ctx context.Context, txs []models.Transaction) ([]models.DailyAssetSnapshot, error) {
	var (
		out       []models.DailyAssetSnapshot
		cash      = decimal.Zero
		repo      = decimal.Zero
		lastPrice = make(map[string]decimal.Decimal)
		book      = tracker.New()
	)

	for i := 0; i < len(txs); {
		date := txs[i].Date
		j := i
		for ; j < len(txs) && txs[j].Date.Equal(date); j++ {
			tx := txs[j]
			book.Apply(tx)
			if tx.RunningBalance.Valid {
				cash = tx.RunningBalance.Decimal
			}
			switch tx.Kind {
			case models.KindRepoLend:
				repo = repo.Add(tx.GrossAmount)
			case models.KindRepoReturn:
				repo = repo.Sub(tx.GrossAmount)
			case models.KindBuy, models.KindSell:
				if tx.SecurityCode != "" && tx.Price.IsPositive() {
					lastPrice[tx.SecurityCode] = tx.Price
				}
			}
		}
		i = j

		value, unpriced, err := c.markToMarket(ctx, book.Holdings(), lastPrice, date)
		if err != nil {
			return nil, err
		}
		out = append(out, models.DailyAssetSnapshot{
			Date:                date,
			CashBalance:         cash,
			RepoBalance:         repo,
			PositionMarketValue: value,
			TotalAssets:         cash.Add(repo).Add(value),
			Valued:              len(unpriced) == 0,
			UnpricedCodes:       unpriced,
		})
	}
	return out, nil
}

// markToMarket values holdings on date. Codes that cannot be priced are
// returned instead of being valued at zero.
func (c *Calculator) markToMarket(ctx context.Context, holdings map[string]int64, lastPrice map[string]decimal.Decimal, date time.Time) (decimal.Decimal, []string, error) {
	codes := make([]string, 0, len(holdings))
	for code := range holdings {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	value := decimal.Zero
	var unpriced []string
	for _, code := range codes {
		price, ok := lastPrice[code]
		if !ok {
			var err error
			price, err = c.lookupPrice(ctx, code, date)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return decimal.Zero, nil, ctxErr
				}
				c.log.Debug().Str("security_code", code).Time("date", date).Err(err).Msg("holding left unvalued")
				unpriced = append(unpriced, code)
				continue
			}
		}
		value = value.Add(price.Mul(decimal.NewFromInt(holdings[code])))
	}
	return value.Round(moneyPlaces), unpriced, nil
}

func (c *Calculator) lookupPrice(ctx context.Context, code string, date time.Time) (decimal.Decimal, error) {
	if c.lookup == nil {
		return decimal.Zero, models.ErrPriceUnavailable
	}
	p, err := c.lookup.PriceAt(ctx, code, date)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsPositive() {
		return decimal.Zero, errors.Join(models.ErrPriceUnavailable, models.ErrInvalidPrice)
	}
	return p, nil
}
