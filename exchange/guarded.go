package exchange

import (
	"context"
	"fmt"

	"github.com/rustyeddy/cryptoagent/resilience"
)

// Guarded wraps an Exchange with the resilience layer. Every call runs
// rate limiter check -> cache read (idempotent reads) -> retry-wrapped
// call with circuit breaker accounting -> cache write. Breaker and
// limiter are keyed by the underlying service, so two accounts on the
// same exchange share them; the cache is keyed per account.
type Guarded struct {
	inner     Exchange
	accountID string
	breaker   *resilience.CircuitBreaker
	limiter   *resilience.RateLimiter
	retry     *resilience.Retryer
	cache     *resilience.Cache
	alerts    *resilience.AlertManager
	clock     resilience.Clock
}

// GuardDeps are the injected resilience services. All fields except
// Alerts are required.
type GuardDeps struct {
	Breaker *resilience.CircuitBreaker
	Limiter *resilience.RateLimiter
	Retry   *resilience.Retryer
	Cache   *resilience.Cache
	Alerts  *resilience.AlertManager
	Clock   resilience.Clock
}

// Guard wraps inner for the given account id.
func Guard(inner Exchange, accountID string, deps GuardDeps) *Guarded {
	clock := deps.Clock
	if clock == nil {
		clock = resilience.RealClock()
	}
	return &Guarded{
		inner:     inner,
		accountID: accountID,
		breaker:   deps.Breaker,
		limiter:   deps.Limiter,
		retry:     deps.Retry,
		cache:     deps.Cache,
		alerts:    deps.Alerts,
		clock:     clock,
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// Inner returns the wrapped adapter, for capability checks such as
// PriceSeeder.
func (g *Guarded) Inner() Exchange { return g.inner }

func (g *Guarded) balancesKey() string { return "balances:" + g.accountID }
func (g *Guarded) priceKey(asset string) string {
	return "price:" + g.inner.Name() + ":" + asset
}

func (g *Guarded) GetBalances(ctx context.Context) (map[string]float64, error) {
	if !g.limiter.Allow(g.inner.Name()) {
		return nil, fmt.Errorf("%s balances: %w", g.inner.Name(), resilience.ErrRateLimited)
	}

	if hit, ok := g.cache.Get(g.balancesKey()); ok {
		if balances, ok := hit.Value.(map[string]float64); ok {
			return balances, nil
		}
	}

	var balances map[string]float64
	err := g.call(ctx, func() error {
		var callErr error
		balances, callErr = g.inner.GetBalances(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	g.cache.Put(g.balancesKey(), balances)
	return balances, nil
}

// GetPrice returns a fresh quote when the service cooperates, and falls
// back to the last known value, tagged stale, when it does not. Callers
// must check UsableForSizing before trading on it.
func (g *Guarded) GetPrice(ctx context.Context, asset string) (Quote, error) {
	if !g.limiter.Allow(g.inner.Name()) {
		return Quote{}, fmt.Errorf("%s price %s: %w", g.inner.Name(), asset, resilience.ErrRateLimited)
	}

	key := g.priceKey(asset)
	if hit, ok := g.cache.Get(key); ok {
		if q, ok := hit.Value.(Quote); ok {
			return q, nil
		}
	}

	var quote Quote
	err := g.call(ctx, func() error {
		var callErr error
		quote, callErr = g.inner.GetPrice(ctx, asset)
		return callErr
	})
	if err == nil {
		g.cache.Put(key, quote)
		return quote, nil
	}

	// Degraded path: serve the last known value, tagged.
	if hit, ok := g.cache.GetStale(key); ok {
		if q, castOK := hit.Value.(Quote); castOK {
			q.Stale = true
			q.At = hit.StoredAt
			g.alerts.Warn(g.inner.Name(), "serving stale price",
				"asset", asset, "age", hit.Age(g.clock.Now()).String())
			return q, nil
		}
	}
	return Quote{}, err
}

func (g *Guarded) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	// Validation failures never reach the network or the breaker.
	if err := req.Validate(); err != nil {
		return OrderResult{}, err
	}

	if !g.limiter.Allow(g.inner.Name()) {
		return OrderResult{}, fmt.Errorf("%s order %s %s: %w", g.inner.Name(), req.Side, req.Asset, resilience.ErrRateLimited)
	}

	var res OrderResult
	err := g.call(ctx, func() error {
		var callErr error
		res, callErr = g.inner.PlaceOrder(ctx, req)
		return callErr
	})
	if err == nil {
		// The fill moved funds; the cached balance snapshot is no
		// longer true.
		g.cache.Delete(g.balancesKey())
	}
	return res, err
}

// call composes breaker and retry around one outbound call. The breaker
// is consulted once up front and the final outcome is recorded exactly
// once, so an exhausted retry counts as a single breaker failure.
func (g *Guarded) call(ctx context.Context, op func() error) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("%s: %w", g.inner.Name(), resilience.ErrCircuitOpen)
	}

	if err := g.retry.Do(ctx, op); err != nil {
		g.breaker.RecordFailure()
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}
