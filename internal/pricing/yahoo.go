package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

const (
	defaultYahooBaseURL    = "https://query1.finance.yahoo.com"
	defaultYahooSessionURL = "https://finance.yahoo.com/quote/600000.SS"
)

var yahooSuffix = map[string]string{
	marketShanghai: ".SS",
	marketShenzhen: ".SZ",
	marketBeijing:  ".BJ",
}

// YahooProvider reads the Yahoo Finance chart API. It needs a cookie session
// first, so it implements Connector.
type YahooProvider struct {
	baseURL    string
	sessionURL string
	client     *http.Client
	limiter    *rate.Limiter

	mu        sync.RWMutex
	connected bool
}

// YahooOptions overrides endpoints, mainly for tests.
type YahooOptions struct {
	BaseURL    string
	SessionURL string
	Timeout    time.Duration
}

// NewYahooProvider builds a provider with its own cookie jar. The session is
// not opened until Connect.
func NewYahooProvider(opts YahooOptions, limiter *rate.Limiter) *YahooProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultYahooBaseURL
	}
	if opts.SessionURL == "" {
		opts.SessionURL = defaultYahooSessionURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &YahooProvider{
		baseURL:    opts.BaseURL,
		sessionURL: opts.SessionURL,
		client:     &http.Client{Jar: jar, Timeout: opts.Timeout},
		limiter:    limiter,
	}
}

func (y *YahooProvider) Name() string { return "yahoo" }

func (y *YahooProvider) Connected() bool {
	y.mu.RLock()
	defer y.mu.RUnlock()
	return y.connected
}

// Connect visits a quote page to collect the session cookies the chart API
// expects.
func (y *YahooProvider) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.sessionURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo session: %w", err)
	}
	resp.Body.Close()

	u, _ := url.Parse(y.sessionURL)
	if resp.StatusCode >= http.StatusBadRequest && len(y.client.Jar.Cookies(u)) == 0 {
		return fmt.Errorf("yahoo session: status %d and no cookies", resp.StatusCode)
	}

	y.mu.Lock()
	y.connected = true
	y.mu.Unlock()
	return nil
}

// Symbol maps a six digit code to its Yahoo ticker.
func (y *YahooProvider) Symbol(code string) (string, error) {
	market, err := marketOf(code)
	if err != nil {
		return "", err
	}
	return code + yahooSuffix[market], nil
}

func (y *YahooProvider) Latest(ctx context.Context, code string) (decimal.Decimal, error) {
	symbol, err := y.Symbol(code)
	if err != nil {
		return decimal.Zero, err
	}
	series, err := y.chart(ctx, code, fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=5d", y.baseURL, symbol))
	if err != nil {
		return decimal.Zero, err
	}
	last, ok := series.Last()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no close for %s", models.ErrInvalidPrice, symbol)
	}
	return last.Close, nil
}

func (y *YahooProvider) History(ctx context.Context, code string, from, to time.Time) (models.PriceSeries, error) {
	symbol, err := y.Symbol(code)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, symbol, from.Unix(), to.Add(24*time.Hour).Unix())
	series, err := y.chart(ctx, code, u)
	if err != nil {
		return nil, err
	}
	out := series[:0]
	for _, p := range series {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// chart fetches and flattens a chart response. Null closes (halted days) are
// skipped.
func (y *YahooProvider) chart(ctx context.Context, code, u string) (models.PriceSeries, error) {
	body, err := getBody(ctx, y.client, y.limiter, u)
	if err != nil {
		return nil, err
	}

	var resp yahooChart
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yahoo: decode chart: %w", err)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: yahoo: %s", models.ErrNotSupported, resp.Chart.Error.Description)
		}
		return nil, fmt.Errorf("yahoo: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no result", models.ErrInvalidPrice)
	}

	r := resp.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no quotes", models.ErrInvalidPrice)
	}
	closes := r.Indicators.Quote[0].Close
	if len(closes) != len(r.Timestamp) {
		return nil, fmt.Errorf("yahoo: %d timestamps for %d closes", len(r.Timestamp), len(closes))
	}

	series := make(models.PriceSeries, 0, len(closes))
	for i, c := range closes {
		if c == nil || *c <= 0 {
			continue
		}
		series = append(series, models.PricePoint{
			Date:         tradingDate(time.Unix(r.Timestamp[i], 0)),
			SecurityCode: code,
			Close:        decimal.NewFromFloat(*c).Round(4),
			Source:       y.Name(),
		})
	}
	return series, nil
}
