package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes = 4 << 20
)

// cst is the exchange time zone of the Shanghai, Shenzhen and Beijing markets.
var cst = time.FixedZone("CST", 8*60*60)

// NewLimiter returns a token bucket shared by the HTTP providers.
func NewLimiter(every time.Duration, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(every), burst)
}

// getBody performs a rate limited GET and returns the body. 404 maps to
// models.ErrNotSupported so the chain moves on without retrying.
func getBody(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string) ([]byte, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s returned 404", models.ErrNotSupported, url)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// Exchange markets of a six digit A-share code.
const (
	marketShanghai = "sh"
	marketShenzhen = "sz"
	marketBeijing  = "bj"
)

// marketOf infers the listing market from the leading digit of a normalized
// code. Codes that are not six digits are not supported by HTTP providers.
func marketOf(code string) (string, error) {
	if len(code) != 6 {
		return "", fmt.Errorf("%w: code %q", models.ErrNotSupported, code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: code %q", models.ErrNotSupported, code)
		}
	}
	switch code[0] {
	case '5', '6', '9':
		return marketShanghai, nil
	case '0', '1', '2', '3':
		return marketShenzhen, nil
	case '4', '8':
		return marketBeijing, nil
	default:
		return "", fmt.Errorf("%w: code %q", models.ErrNotSupported, code)
	}
}

// tradingDate converts an exchange timestamp to the UTC midnight of its
// local calendar date, matching how ledger dates are stored.
func tradingDate(t time.Time) time.Time {
	y, m, d := t.In(cst).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
