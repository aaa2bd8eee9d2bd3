package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/cryptoagent/budget"
	"github.com/rustyeddy/cryptoagent/exchange"
	"github.com/rustyeddy/cryptoagent/internal/id"
	"github.com/rustyeddy/cryptoagent/resilience"
	"github.com/rustyeddy/cryptoagent/tradelog"
)

// BusinessConfig parameterizes the accumulation strategy.
type BusinessConfig struct {
	Name   string
	Quote  string
	Target map[string]float64 // asset -> target allocation share
	MinGap float64            // minimum gap (share points) worth acting on
}

// Business rebalances a portfolio toward a target allocation, spending
// at most the cycle ceiling the escalation engine allows.
type Business struct {
	cfg    BusinessConfig
	router *exchange.Router
	budget *budget.Engine
	alerts *resilience.AlertManager
	now    func() time.Time
}

// NewBusiness builds the accumulation agent.
func NewBusiness(cfg BusinessConfig, router *exchange.Router, engine *budget.Engine, alerts *resilience.AlertManager) *Business {
	if cfg.MinGap <= 0 {
		cfg.MinGap = 0.02
	}
	return &Business{
		cfg:    cfg,
		router: router,
		budget: engine,
		alerts: alerts,
		now:    time.Now,
	}
}

// SetNow injects the clock used to stamp entries; tests only.
func (b *Business) SetNow(now func() time.Time) { b.now = now }

func (b *Business) Name() string             { return b.cfg.Name }
func (b *Business) Type() tradelog.AgentType { return tradelog.Business }

// assetView is the per-asset market snapshot taken at cycle start.
type assetView struct {
	asset   string
	ex      exchange.Exchange
	qty     float64
	quote   exchange.Quote
	skipErr error // set when the asset cannot trade this cycle
}

// RunCycle reads balances and prices, sizes one order per asset whose
// allocation gap exceeds the minimum, caps the cycle at the escalated
// ceiling, submits, and reports. The returned entry is complete even
// when every order failed.
func (b *Business) RunCycle(ctx context.Context, mode tradelog.Mode) (tradelog.Entry, error) {
	env := b.budget.ForCycle(ctx)

	views, cash := b.snapshot(ctx)
	records, total := b.rebalance(ctx, views, cash, env.Ceiling)

	report := &tradelog.BusinessReport{
		FearGreed:      env.Reading.Value,
		FearGreedLabel: string(env.Reading.Label),
		Multiplier:     env.Multiplier,
		Ceiling:        env.Ceiling,
		Orders:         records,
		TotalQuote:     total,
	}

	return tradelog.Entry{
		ID:        id.New(),
		Agent:     b.cfg.Name,
		AgentType: tradelog.Business,
		Mode:      mode,
		Time:      b.now().UTC(),
		Business:  report,
	}, nil
}

// snapshot reads balances and prices for every target asset, plus the
// quote-currency cash across the routed exchanges. Reads run
// concurrently; per-asset failures are captured in the view, never
// aborting the cycle.
func (b *Business) snapshot(ctx context.Context) ([]assetView, float64) {
	assets := lo.Keys(b.cfg.Target)
	sort.Strings(assets)

	var (
		mu       sync.Mutex
		balances = map[exchange.Exchange]map[string]float64{}
		balErrs  = map[exchange.Exchange]error{}
	)

	// One balance read per distinct adapter.
	routed := make(map[string]exchange.Exchange, len(assets))
	for _, asset := range assets {
		if ex, err := b.router.For(asset); err == nil {
			routed[asset] = ex
		}
	}
	distinct := lo.Uniq(lo.Values(routed))

	g, gctx := errgroup.WithContext(ctx)
	for _, ex := range distinct {
		g.Go(func() error {
			bals, err := ex.GetBalances(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.alerts.Warn(ex.Name(), "balance read failed", "error", err.Error())
				balErrs[ex] = err
				return nil
			}
			balances[ex] = bals
			return nil
		})
	}

	views := make([]assetView, len(assets))
	for i, asset := range assets {
		views[i] = assetView{asset: asset}

		ex, ok := routed[asset]
		if !ok {
			_, err := b.router.For(asset)
			views[i].skipErr = err
			continue
		}
		views[i].ex = ex

		g.Go(func() error {
			q, err := ex.GetPrice(gctx, asset)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				views[i].skipErr = err
				return nil
			}
			views[i].quote = q
			return nil
		})
	}
	g.Wait()

	now := b.now()
	for i := range views {
		v := &views[i]
		if v.skipErr != nil || v.ex == nil {
			continue
		}
		// An unknown balance must never be sized as a zero balance:
		// the full target would read as a gap and trigger a buy.
		if err, ok := balErrs[v.ex]; ok {
			v.skipErr = fmt.Errorf("balance read failed: %w", err)
			continue
		}
		if !v.quote.UsableForSizing(now) {
			v.skipErr = errors.New("price too old for order sizing")
			continue
		}
		if bals, ok := balances[v.ex]; ok {
			v.qty = bals[v.asset]
		}
	}

	var cash float64
	for _, bals := range balances {
		cash += bals[b.cfg.Quote]
	}
	return views, cash
}

// rebalance sizes orders proportionally to each asset's allocation gap,
// scales the batch under the ceiling, and submits. Computed amounts of
// zero or less are discarded before submission.
func (b *Business) rebalance(ctx context.Context, views []assetView, cash, ceiling float64) ([]tradelog.OrderRecord, float64) {
	records := make([]tradelog.OrderRecord, 0, len(views))

	// Quote cash counts as unallocated portfolio value, so the agent
	// keeps accumulating toward the targets while cash remains.
	tradable := lo.Filter(views, func(v assetView, _ int) bool { return v.skipErr == nil })
	totalValue := cash + lo.SumBy(tradable, func(v assetView) float64 { return v.qty * v.quote.Price })

	type candidate struct {
		view   assetView
		amount float64
	}
	var candidates []candidate

	for _, v := range views {
		if v.skipErr != nil {
			b.alerts.Warn(b.cfg.Name, "asset skipped this cycle",
				"asset", v.asset, "error", v.skipErr.Error())
			records = append(records, tradelog.OrderRecord{
				Asset:  v.asset,
				Side:   string(exchange.Buy),
				Status: tradelog.StatusSkipped,
				Error:  v.skipErr.Error(),
			})
			continue
		}

		if totalValue <= 0 {
			continue // nothing to allocate
		}
		target := b.cfg.Target[v.asset]
		share := v.qty * v.quote.Price / totalValue
		gap := target - share
		if gap <= b.cfg.MinGap {
			continue
		}
		amount := gap * totalValue
		if amount <= 0 {
			continue
		}
		candidates = append(candidates, candidate{view: v, amount: amount})
	}

	// Cap the batch: the cycle's total spend never exceeds the ceiling.
	sum := lo.SumBy(candidates, func(c candidate) float64 { return c.amount })
	if sum > ceiling && sum > 0 {
		scale := ceiling / sum
		for i := range candidates {
			candidates[i].amount *= scale
		}
	}

	var total float64
	for _, c := range candidates {
		if c.amount <= 0 {
			continue
		}
		req := exchange.OrderRequest{
			Asset:       c.view.asset,
			Side:        exchange.Buy,
			QuoteAmount: c.amount,
			Quote:       c.view.quote,
		}
		res, err := c.view.ex.PlaceOrder(ctx, req)
		if err != nil {
			status := tradelog.StatusFailed
			if errors.Is(err, resilience.ErrRateLimited) {
				status = tradelog.StatusSkipped
			}
			b.alerts.Error(c.view.ex.Name(), "order failed",
				"asset", c.view.asset, "error", err.Error())
			records = append(records, tradelog.OrderRecord{
				Asset:       c.view.asset,
				Side:        string(exchange.Buy),
				QuoteAmount: c.amount,
				Price:       c.view.quote.Price,
				Status:      status,
				Error:       err.Error(),
			})
			continue
		}

		total += req.QuoteAmount
		records = append(records, tradelog.OrderRecord{
			OrderID:     res.OrderID,
			Asset:       res.Asset,
			Side:        string(res.Side),
			QuoteAmount: req.QuoteAmount,
			Price:       res.Price,
			Status:      tradelog.StatusFilled,
		})
	}

	return records, total
}
