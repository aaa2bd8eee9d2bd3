package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxSizingAge is the hard ceiling on price age for order sizing. A
// quote older than this may still be shown for display, but must never
// size a new order.
const MaxSizingAge = 300 * time.Second

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Quote is a price observation for one asset. Stale marks values served
// from the graceful cache past their TTL.
type Quote struct {
	Asset string
	Price float64
	At    time.Time
	Stale bool
}

// Age returns how old the quote is.
func (q Quote) Age(now time.Time) time.Duration { return now.Sub(q.At) }

// UsableForSizing reports whether the quote is recent enough to size a
// new order with.
func (q Quote) UsableForSizing(now time.Time) bool {
	return !q.At.IsZero() && q.Age(now) <= MaxSizingAge
}

// OrderRequest is an intent to trade quoted in the account's quote
// currency. QuoteAmount must be strictly positive.
type OrderRequest struct {
	Asset       string
	Side        Side
	QuoteAmount float64
	Quote       Quote // price snapshot the amount was computed from
}

// Validate rejects malformed requests before any network call.
func (r OrderRequest) Validate() error {
	if r.Asset == "" {
		return errors.New("order: asset is required")
	}
	if r.Side != Buy && r.Side != Sell {
		return fmt.Errorf("order: invalid side %q", r.Side)
	}
	if r.QuoteAmount <= 0 {
		return fmt.Errorf("order: quote amount must be positive, got %.8f", r.QuoteAmount)
	}
	return nil
}

// OrderResult is the fill reported by an exchange.
type OrderResult struct {
	OrderID     string
	Asset       string
	Side        Side
	QuoteAmount float64
	FilledQty   float64
	Price       float64
	Time        time.Time
}

// Exchange is the uniform capability surface of one exchange account,
// simulated or real. Callers above this boundary never see raw exchange
// API specifics.
type Exchange interface {
	// Name identifies the underlying exchange service (for example
	// "binance"); accounts on the same service share resilience state.
	Name() string
	GetBalances(ctx context.Context) (map[string]float64, error)
	GetPrice(ctx context.Context, asset string) (Quote, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// PriceSeeder is the capability of seeding prices into a simulated
// exchange. Only the paper engine implements it; callers must check for
// the capability with a type assertion, never assume it.
type PriceSeeder interface {
	SeedPrice(asset string, price float64)
}
