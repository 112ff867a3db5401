package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/time/rate"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

const (
	defaultTencentQuoteURL = "https://qt.gtimg.cn"
	defaultTencentKlineURL = "https://web.ifzq.gtimg.cn"

	// tencentKlineLimit caps the bars per kline request.
	tencentKlineLimit = 640
)

// TencentProvider reads the Tencent quote and kline endpoints.
type TencentProvider struct {
	quoteURL string
	klineURL string
	client   *http.Client
	limiter  *rate.Limiter
}

// TencentOptions overrides endpoints, mainly for tests.
type TencentOptions struct {
	QuoteURL string
	KlineURL string
	Timeout  time.Duration
}

func NewTencentProvider(opts TencentOptions, limiter *rate.Limiter) *TencentProvider {
	if opts.QuoteURL == "" {
		opts.QuoteURL = defaultTencentQuoteURL
	}
	if opts.KlineURL == "" {
		opts.KlineURL = defaultTencentKlineURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &TencentProvider{
		quoteURL: opts.QuoteURL,
		klineURL: opts.KlineURL,
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  limiter,
	}
}

func (t *TencentProvider) Name() string { return "tencent" }

// Latest parses the "~" separated quote line, e.g.
//
//	v_sh600000="1~浦发银行~600000~10.52~10.40~...";
//
// Field 3 is the last price. The body is GBK encoded.
func (t *TencentProvider) Latest(ctx context.Context, code string) (decimal.Decimal, error) {
	market, err := marketOf(code)
	if err != nil {
		return decimal.Zero, err
	}
	body, err := getBody(ctx, t.client, t.limiter, fmt.Sprintf("%s/q=%s%s", t.quoteURL, market, code))
	if err != nil {
		return decimal.Zero, err
	}
	text, err := simplifiedchinese.GBK.NewDecoder().String(string(body))
	if err != nil {
		return decimal.Zero, fmt.Errorf("tencent: decode quote: %w", err)
	}

	if strings.Contains(text, "none_match") {
		return decimal.Zero, fmt.Errorf("%w: tencent has no quote for %s", models.ErrNotSupported, code)
	}
	_, rest, ok := strings.Cut(text, `="`)
	if !ok {
		return decimal.Zero, fmt.Errorf("tencent: malformed quote for %s", code)
	}
	line, _, _ := strings.Cut(rest, `"`)
	fields := strings.Split(line, "~")
	if len(fields) < 4 {
		return decimal.Zero, fmt.Errorf("tencent: short quote for %s (%d fields)", code, len(fields))
	}
	price, err := decimal.NewFromString(strings.TrimSpace(fields[3]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("tencent: price %q: %w", fields[3], err)
	}
	return price, nil
}

type tencentKline struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tencentBars struct {
	Day    [][]any `json:"day"`
	QfqDay [][]any `json:"qfqday"`
}

// History reads unadjusted daily bars: [date, open, close, high, low, volume].
func (t *TencentProvider) History(ctx context.Context, code string, from, to time.Time) (models.PriceSeries, error) {
	market, err := marketOf(code)
	if err != nil {
		return nil, err
	}
	symbol := market + code
	u := fmt.Sprintf("%s/appstock/app/fqkline/get?param=%s,day,%s,%s,%d,",
		t.klineURL, symbol, from.Format("2006-01-02"), to.Format("2006-01-02"), tencentKlineLimit)
	body, err := getBody(ctx, t.client, t.limiter, u)
	if err != nil {
		return nil, err
	}

	var resp tencentKline
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("tencent: decode kline: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("tencent: kline code %d: %s", resp.Code, resp.Msg)
	}
	var data map[string]tencentBars
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: tencent returned no bars for %s", models.ErrPriceUnavailable, symbol)
	}
	bars := data[symbol].Day
	if len(bars) == 0 {
		bars = data[symbol].QfqDay
	}

	series := make(models.PriceSeries, 0, len(bars))
	for _, bar := range bars {
		if len(bar) < 3 {
			continue
		}
		ds, _ := bar[0].(string)
		cs, _ := bar[2].(string)
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			continue
		}
		c, err := decimal.NewFromString(cs)
		if err != nil {
			continue
		}
		series = append(series, models.PricePoint{Date: d, SecurityCode: code, Close: c, Source: t.Name()})
	}
	return series, nil
}
