// Package pricing resolves latest and historical close prices from a ranked
// list of providers with retry, fallback, manual overrides and an optional
// connect prompt for providers that need a session.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/settlepulse/internal/domain/models"
)

// Provider is the narrow capability every price backend implements.
type Provider interface {
	Name() string
	Latest(ctx context.Context, code string) (decimal.Decimal, error)
	History(ctx context.Context, code string, from, to time.Time) (models.PriceSeries, error)
}

// Connector is implemented by providers that need a session before they can
// serve prices.
type Connector interface {
	Connected() bool
	Connect(ctx context.Context) error
}

// State classifies one provider attempt.
type State int

const (
	// StateOK carries a usable price.
	StateOK State = iota
	// StateRetryable failed in a way another attempt may fix.
	StateRetryable
	// StateExhausted means this provider cannot serve the call; move on.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateRetryable:
		return "retryable"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of one provider attempt.
type Outcome struct {
	State  State
	Price  decimal.Decimal
	Series models.PriceSeries
	Err    error
}

// latestOutcome maps a provider Latest reply onto an Outcome. A zero or
// negative price is never a valid answer.
func latestOutcome(price decimal.Decimal, err error) Outcome {
	if err != nil {
		return Outcome{State: errorState(err), Err: err}
	}
	if !price.IsPositive() {
		return Outcome{State: StateRetryable, Err: fmt.Errorf("%w: %s", models.ErrInvalidPrice, price)}
	}
	return Outcome{State: StateOK, Price: price}
}

// historyOutcome drops non-positive closes; an empty remainder is retryable.
func historyOutcome(series models.PriceSeries, err error) Outcome {
	if err != nil {
		return Outcome{State: errorState(err), Err: err}
	}
	clean := make(models.PriceSeries, 0, len(series))
	for _, p := range series {
		if p.Close.IsPositive() {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return Outcome{State: StateRetryable, Err: fmt.Errorf("%w: empty series", models.ErrInvalidPrice)}
	}
	return Outcome{State: StateOK, Series: clean}
}

func errorState(err error) State {
	switch {
	case errors.Is(err, models.ErrNotSupported),
		errors.Is(err, models.ErrPriceUnavailable),
		errors.Is(err, models.ErrProviderNotConnected),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return StateExhausted
	default:
		return StateRetryable
	}
}
