package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
	"github.com/guttosm/settlepulse/internal/logger"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	defaultCacheTTL    = 5 * time.Minute
	defaultConcurrency = 4

	// historyLookback is how far before a requested mark PriceAt fetches, so
	// that holidays and suspensions still find an earlier close.
	historyLookback = 30 * 24 * time.Hour
)

// Config tunes a Source. Zero values fall back to defaults.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	CacheTTL    time.Duration
	Concurrency int
	Overrides   map[string]decimal.Decimal
}

// Prompt asks the operator whether to start the named provider's session and
// retry. Returning false moves the chain on.
type Prompt func(ctx context.Context, provider string) bool

// CallOption customizes a single lookup.
type CallOption func(*callOptions)

type callOptions struct {
	prompt Prompt
}

// WithPrompt lets a lookup offer to connect providers that report not
// connected. Without it such providers are skipped.
func WithPrompt(p Prompt) CallOption {
	return func(o *callOptions) { o.prompt = p }
}

type coveredSeries struct {
	from, to time.Time
	series   models.PriceSeries
}

// Source walks its providers in rank order until one yields a price.
type Source struct {
	providers   []Provider
	maxAttempts int
	backoff     time.Duration
	concurrency int

	mu        sync.RWMutex
	overrides map[string]decimal.Decimal

	cache *cache.Cache
	log   zerolog.Logger
}

// NewSource builds a Source over providers, highest rank first.
func NewSource(cfg Config, providers ...Provider) *Source {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}

	overrides := make(map[string]decimal.Decimal, len(cfg.Overrides))
	for code, p := range cfg.Overrides {
		if p.IsPositive() {
			overrides[code] = p
		}
	}

	return &Source{
		providers:   providers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		concurrency: cfg.Concurrency,
		overrides:   overrides,
		cache:       cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:         logger.With("pricing"),
	}
}

// Providers returns the provider names in rank order.
func (s *Source) Providers() []string {
	out := make([]string, len(s.providers))
	for i, p := range s.providers {
		out[i] = p.Name()
	}
	return out
}

// ConnectAll opens the session of every provider that needs one and is not
// connected yet. Failures are returned per provider name; the providers stay
// in the chain and are skipped until connected.
func (s *Source) ConnectAll(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, p := range s.providers {
		c, ok := p.(Connector)
		if !ok || c.Connected() {
			continue
		}
		if err := c.Connect(ctx); err != nil {
			s.log.Warn().Str("provider", p.Name()).Err(err).Msg("connect failed")
			failed[p.Name()] = err
			continue
		}
		s.log.Info().Str("provider", p.Name()).Msg("provider connected")
	}
	return failed
}

// SetOverride pins code to price for every later lookup.
func (s *Source) SetOverride(code string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: override %s for %s", models.ErrInvalidPrice, price, code)
	}
	s.mu.Lock()
	s.overrides[code] = price
	s.mu.Unlock()
	return nil
}

// ClearOverride removes a manual price.
func (s *Source) ClearOverride(code string) {
	s.mu.Lock()
	delete(s.overrides, code)
	s.mu.Unlock()
}

func (s *Source) override(code string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.overrides[code]
	return p, ok
}

// Latest returns the current price of code.
//
// Behavior:
//   - An override price short-circuits the provider chain.
//   - A cached price younger than the cache TTL is returned as is.
//   - Each provider is attempted up to MaxAttempts times with constant
//     backoff; an exhausted provider hands over to the next one.
//   - When every provider fails the error wraps models.ErrPriceUnavailable
//     joined with each provider's last error.
func (s *Source) Latest(ctx context.Context, code string, opts ...CallOption) (decimal.Decimal, error) {
	code = strings.TrimSpace(code)
	if p, ok := s.override(code); ok {
		return p, nil
	}
	key := "latest:" + code
	if v, ok := s.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}

	out, err := s.walk(ctx, code, applyOptions(opts), func(ctx context.Context, p Provider) Outcome {
		return latestOutcome(p.Latest(ctx, code))
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.cache.SetDefault(key, out.Price)
	return out.Price, nil
}

// History returns the closes of code between from and to, inclusive.
// Non-positive closes are dropped. An override collapses the series to a
// single point at to.
func (s *Source) History(ctx context.Context, code string, from, to time.Time, opts ...CallOption) (models.PriceSeries, error) {
	code = strings.TrimSpace(code)
	if p, ok := s.override(code); ok {
		return models.PriceSeries{{Date: to, SecurityCode: code, Close: p, Source: "override"}}, nil
	}

	out, err := s.walk(ctx, code, applyOptions(opts), func(ctx context.Context, p Provider) Outcome {
		return historyOutcome(p.History(ctx, code, from, to))
	})
	if err != nil {
		return nil, err
	}
	return out.Series, nil
}

// PriceAt returns the close of code on date or the latest close before it.
// Fetched series are memoized per code so that marking many dates costs one
// provider call per window.
func (s *Source) PriceAt(ctx context.Context, code string, date time.Time) (decimal.Decimal, error) {
	code = strings.TrimSpace(code)
	if p, ok := s.override(code); ok {
		return p, nil
	}

	key := "history:" + code
	if v, ok := s.cache.Get(key); ok {
		cov := v.(coveredSeries)
		if !date.Before(cov.from) && !date.After(cov.to) {
			if pt, ok := cov.series.At(date); ok {
				return pt.Close, nil
			}
			return decimal.Zero, fmt.Errorf("%w: %s has no close on or before %s", models.ErrPriceUnavailable, code, date.Format("2006-01-02"))
		}
	}

	from := date.Add(-historyLookback)
	to := date.Add(historyLookback)
	series, err := s.History(ctx, code, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	s.cache.SetDefault(key, coveredSeries{from: from, to: to, series: series})

	pt, ok := series.At(date)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s has no close on or before %s", models.ErrPriceUnavailable, code, date.Format("2006-01-02"))
	}
	return pt.Close, nil
}

// walk is the ranked fallback loop shared by Latest and History.
func (s *Source) walk(ctx context.Context, code string, o callOptions, call func(context.Context, Provider) Outcome) (Outcome, error) {
	var errs []error
	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		if c, ok := p.(Connector); ok && !c.Connected() {
			out, tried := s.connectAndTry(ctx, p, c, o.prompt, call)
			if !tried {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), models.ErrProviderNotConnected))
				continue
			}
			if out.State == StateOK {
				return out, nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), out.Err))
			continue
		}

		out := s.attempt(ctx, p, call)
		if out.State == StateOK {
			s.log.Debug().Str("provider", p.Name()).Str("security_code", code).Msg("price resolved")
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		s.log.Warn().Str("provider", p.Name()).Str("security_code", code).Err(out.Err).Msg("provider exhausted")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), out.Err))
	}

	return Outcome{}, fmt.Errorf("%s: %w", code, errors.Join(append([]error{models.ErrPriceUnavailable}, errs...)...))
}

// attempt runs call against one provider with bounded constant backoff.
func (s *Source) attempt(ctx context.Context, p Provider, call func(context.Context, Provider) Outcome) Outcome {
	var last Outcome
	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewConstant(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		last = call(ctx, p)
		switch last.State {
		case StateOK:
			return nil
		case StateRetryable:
			return retry.RetryableError(last.Err)
		default:
			return last.Err
		}
	})
	if err == nil {
		return last
	}
	// canceled before the first call
	if last.State == StateOK || last.Err == nil {
		return Outcome{State: StateExhausted, Err: err}
	}
	return last
}

// connectAndTry offers to connect a provider and, when accepted, makes one
// attempt. tried is false when the provider was skipped.
func (s *Source) connectAndTry(ctx context.Context, p Provider, c Connector, prompt Prompt, call func(context.Context, Provider) Outcome) (Outcome, bool) {
	if prompt == nil {
		s.log.Debug().Str("provider", p.Name()).Msg("provider not connected, skipped")
		return Outcome{}, false
	}
	if !prompt(ctx, p.Name()) {
		s.log.Info().Str("provider", p.Name()).Msg("connect declined")
		return Outcome{}, false
	}
	if err := c.Connect(ctx); err != nil {
		s.log.Warn().Str("provider", p.Name()).Err(err).Msg("connect failed")
		return Outcome{State: StateExhausted, Err: fmt.Errorf("connect: %w", err)}, true
	}
	s.log.Info().Str("provider", p.Name()).Msg("provider connected")
	return call(ctx, p), true
}

func applyOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
