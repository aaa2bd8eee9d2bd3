package exchange

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoRoute is returned when an asset has no mapping and no default
// adapter is configured. The operation fails closed; the router never
// picks an adapter arbitrarily.
var ErrNoRoute = errors.New("no route for asset")

// Router resolves an asset symbol to the exchange account authorized to
// trade it. The route table is fixed at construction and read-only
// afterwards.
type Router struct {
	routes     map[string]Exchange
	fallback   Exchange
	fallbackID string
}

// NewRouter builds a router from a static asset -> adapter table.
// fallback may be nil; fallbackID names it for diagnostics.
func NewRouter(routes map[string]Exchange, fallback Exchange, fallbackID string) *Router {
	copied := make(map[string]Exchange, len(routes))
	for asset, ex := range routes {
		copied[asset] = ex
	}
	return &Router{routes: copied, fallback: fallback, fallbackID: fallbackID}
}

// For returns the adapter authorized for the asset, the default when
// unmapped, or ErrNoRoute when neither exists.
func (r *Router) For(asset string) (Exchange, error) {
	if ex, ok := r.routes[asset]; ok {
		return ex, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoRoute, asset)
}

// Assets returns the explicitly mapped assets, sorted.
func (r *Router) Assets() []string {
	out := make([]string, 0, len(r.routes))
	for asset := range r.routes {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// DefaultID returns the name of the default adapter, or "" when fail
// closed.
func (r *Router) DefaultID() string { return r.fallbackID }
