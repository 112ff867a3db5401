package pricing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BulkResult collects a RefreshLatest run. A code is in at most one map;
// codes abandoned on cancellation are in neither.
type BulkResult struct {
	Prices map[string]decimal.Decimal
	Errors map[string]error
}

// RefreshLatest fetches the latest price of every code concurrently, bounded
// by the configured concurrency. A failing code never cancels the others.
// When ctx is canceled the run stops launching fetches and returns what was
// resolved so far together with ctx.Err().
func (s *Source) RefreshLatest(ctx context.Context, codes []string, opts ...CallOption) (BulkResult, error) {
	res := BulkResult{
		Prices: make(map[string]decimal.Decimal),
		Errors: make(map[string]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			price, err := s.Latest(ctx, code, opts...)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Prices[code] = price
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			default:
				res.Errors[code] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Int("requested", len(seen)).
		Int("resolved", len(res.Prices)).
		Int("failed", len(res.Errors)).
		Bool("canceled", ctx.Err() != nil).
		Msg("bulk price refresh finished")

	return res, ctx.Err()
}
