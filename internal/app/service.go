package app

import (
	"database/sql"
	"fmt"

	"github.com/guttosm/settlepulse/config"
	"github.com/guttosm/settlepulse/internal/pricing"
	"github.com/guttosm/settlepulse/internal/service"
	"github.com/guttosm/settlepulse/internal/storage"
)

// Services bundles the repositories, price source and ledger service built
// over one database handle. The CLI modes and the HTTP API share it.
type Services struct {
	Transactions storage.TransactionsRepository
	Prices       storage.PricesRepository
	Snapshots    storage.SnapshotsRepository
	Source       *pricing.Source
	Ledger       service.LedgerService
}

// NewServices wires the storage, pricing and service layers.
func NewServices(db *sql.DB, cfg config.Config) (*Services, error) {
	txRepo := storage.NewTransactionsRepository(db)
	priceRepo := storage.NewPricesRepository(db)
	snapRepo := storage.NewSnapshotsRepository(db)

	src, err := BuildSource(cfg.Pricing, priceRepo)
	if err != nil {
		return nil, err
	}

	ledger := service.NewLedgerService(service.Deps{
		Transactions: txRepo,
		Prices:       priceRepo,
		Snapshots:    snapRepo,
		Source:       src,
		RiskFreeRate: cfg.Analysis.RiskFreeRate,
	})

	return &Services{
		Transactions: txRepo,
		Prices:       priceRepo,
		Snapshots:    snapRepo,
		Source:       src,
		Ledger:       ledger,
	}, nil
}

// BuildSource assembles the ranked provider chain named in cfg.Providers.
// HTTP providers share one outbound rate limiter.
func BuildSource(cfg config.PricingConfig, prices storage.PricesRepository) (*pricing.Source, error) {
	overrides, err := pricing.ParseOverrides(cfg.Overrides)
	if err != nil {
		return nil, fmt.Errorf("PRICE_OVERRIDES: %w", err)
	}

	limiter := pricing.NewLimiter(cfg.RateEvery, cfg.RateBurst)
	providers := make([]pricing.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "store":
			providers = append(providers, pricing.NewStoreProvider(prices, cfg.StoreMaxAge))
		case "tencent":
			providers = append(providers, pricing.NewTencentProvider(pricing.TencentOptions{
				QuoteURL: cfg.TencentQuoteURL,
				KlineURL: cfg.TencentKlineURL,
				Timeout:  cfg.HTTPTimeout,
			}, limiter))
		case "yahoo":
			providers = append(providers, pricing.NewYahooProvider(pricing.YahooOptions{
				BaseURL:    cfg.YahooBaseURL,
				SessionURL: cfg.YahooSessionURL,
				Timeout:    cfg.HTTPTimeout,
			}, limiter))
		default:
			return nil, fmt.Errorf("unknown price provider %q", name)
		}
	}

	return pricing.NewSource(pricing.Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		CacheTTL:    cfg.CacheTTL,
		Concurrency: cfg.Concurrency,
		Overrides:   overrides,
	}, providers...), nil
}
