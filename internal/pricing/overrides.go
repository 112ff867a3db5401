package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// ParseOverrides reads manual prices written as "code:price" pairs separated
// by commas, e.g. "600000:45.2,000001:12.30". Blank input yields an empty map.
func ParseOverrides(raw string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, price, ok := strings.Cut(pair, ":")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("override %q: want code:price", pair)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", pair, err)
		}
		if !p.IsPositive() {
			return nil, fmt.Errorf("override %q: %w", pair, models.ErrInvalidPrice)
		}
		out[code] = p
	}
	return out, nil
}
