package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/storage"
)

// StoreProvider serves prices already persisted in daily_prices.
type StoreProvider struct {
	repo   storage.PricesRepository
	maxAge time.Duration
	now    func() time.Time
}

// NewStoreProvider builds a provider over repo. A stored latest price older
// than maxAge is treated as unavailable; zero disables the check.
func NewStoreProvider(repo storage.PricesRepository, maxAge time.Duration) *StoreProvider {
	return &StoreProvider{repo: repo, maxAge: maxAge, now: time.Now}
}

func (s *StoreProvider) Name() string { return "store" }

func (s *StoreProvider) Latest(ctx context.Context, code string) (decimal.Decimal, error) {
	p, err := s.repo.LatestPrice(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("%w: no stored price for %s", models.ErrPriceUnavailable, code)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if s.maxAge > 0 && s.now().Sub(p.Date) > s.maxAge {
		return decimal.Zero, fmt.Errorf("%w: stored price for %s is from %s", models.ErrPriceUnavailable, code, p.Date.Format("2006-01-02"))
	}
	return p.Close, nil
}

func (s *StoreProvider) History(ctx context.Context, code string, from, to time.Time) (models.PriceSeries, error) {
	series, err := s.repo.PriceHistory(ctx, code, from, to)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no stored history for %s", models.ErrPriceUnavailable, code)
	}
	return series, nil
}
