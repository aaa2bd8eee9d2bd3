package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/cryptoagent/internal/id"
)

// PaperExchange simulates one exchange account in memory: seeded
// prices, a balance sheet, and market-order fills with a configurable
// fee. It is safe for concurrent use.
type PaperExchange struct {
	mu       sync.Mutex
	name     string
	quote    string
	balances map[string]float64
	prices   map[string]Quote
	feeRate  float64
	now      func() time.Time
}

// PaperOption tweaks a PaperExchange at construction.
type PaperOption func(*PaperExchange)

// WithFeeRate sets the taker fee applied to fills (e.g. 0.001 = 10 bps).
func WithFeeRate(rate float64) PaperOption {
	return func(p *PaperExchange) { p.feeRate = rate }
}

// WithNow injects the clock used to timestamp quotes and fills.
func WithNow(now func() time.Time) PaperOption {
	return func(p *PaperExchange) { p.now = now }
}

// NewPaper builds a simulated account. quote is the quote currency the
// account trades against (e.g. "USDT"); balances seeds the opening
// balance sheet and is copied.
func NewPaper(name, quote string, balances map[string]float64, opts ...PaperOption) *PaperExchange {
	p := &PaperExchange{
		name:     name,
		quote:    quote,
		balances: make(map[string]float64, len(balances)),
		prices:   make(map[string]Quote),
		now:      time.Now,
	}
	for asset, amount := range balances {
		p.balances[asset] = amount
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PaperExchange) Name() string { return p.name }

// SeedPrice sets the simulated market price for an asset. This is the
// PriceSeeder capability; live adapters have no equivalent.
func (p *PaperExchange) SeedPrice(asset string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[asset] = Quote{Asset: asset, Price: price, At: p.now()}
}

func (p *PaperExchange) GetBalances(ctx context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.balances))
	for asset, amount := range p.balances {
		out[asset] = amount
	}
	return out, nil
}

func (p *PaperExchange) GetPrice(ctx context.Context, asset string) (Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.prices[asset]
	if !ok {
		return Quote{}, fmt.Errorf("paper %s: no seeded price for %q", p.name, asset)
	}
	// Quotes are re-stamped on read: the simulated market is always live.
	q.At = p.now()
	return q, nil
}

// PlaceOrder fills a market order against the seeded price, moving the
// fee-adjusted quantity between the quote balance and the asset balance.
func (p *PaperExchange) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := req.Validate(); err != nil {
		return OrderResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	q, ok := p.prices[req.Asset]
	if !ok {
		return OrderResult{}, fmt.Errorf("paper %s: no seeded price for %q", p.name, req.Asset)
	}

	switch req.Side {
	case Buy:
		if p.balances[p.quote] < req.QuoteAmount {
			return OrderResult{}, fmt.Errorf("paper %s: insufficient %s balance %.2f for buy of %.2f",
				p.name, p.quote, p.balances[p.quote], req.QuoteAmount)
		}
		qty := req.QuoteAmount * (1 - p.feeRate) / q.Price
		p.balances[p.quote] -= req.QuoteAmount
		p.balances[req.Asset] += qty
		return p.fillLocked(req, qty, q.Price), nil

	case Sell:
		qty := req.QuoteAmount / q.Price
		if p.balances[req.Asset] < qty {
			return OrderResult{}, fmt.Errorf("paper %s: insufficient %s balance %.8f for sell of %.8f",
				p.name, req.Asset, p.balances[req.Asset], qty)
		}
		p.balances[req.Asset] -= qty
		p.balances[p.quote] += req.QuoteAmount * (1 - p.feeRate)
		return p.fillLocked(req, qty, q.Price), nil
	}

	return OrderResult{}, fmt.Errorf("order: invalid side %q", req.Side)
}

func (p *PaperExchange) fillLocked(req OrderRequest, qty, price float64) OrderResult {
	return OrderResult{
		OrderID:     id.New(),
		Asset:       req.Asset,
		Side:        req.Side,
		QuoteAmount: req.QuoteAmount,
		FilledQty:   qty,
		Price:       price,
		Time:        p.now(),
	}
}
