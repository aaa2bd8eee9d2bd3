package agent

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cinar/indicator"

	"github.com/rustyeddy/cryptoagent/exchange"
	"github.com/rustyeddy/cryptoagent/internal/id"
	"github.com/rustyeddy/cryptoagent/resilience"
	"github.com/rustyeddy/cryptoagent/tradelog"
)

// minSignalWindow is the shortest price history the indicators accept.
// Bollinger bands use a 20-period window; with less history than that
// the score stays neutral.
const minSignalWindow = 20

// neutralScore sits in the middle of the 0..100 composite range and
// never triggers a trade under any sane ranging band.
const neutralScore = 50.0

// PersonalConfig parameterizes the day-trading strategy.
type PersonalConfig struct {
	Name        string
	Quote       string
	DailyBudget float64
	Assets      []string
	RangeLow    float64 // band floor: score below it buys
	RangeHigh   float64 // band ceiling: score above it sells
	WindowSize  int     // rolling closes kept per asset
}

// position is the running cost-basis ledger for one asset.
type position struct {
	qty  float64
	cost float64 // total quote spent on the open quantity
}

// Personal day-trades a fixed budget on a composite momentum score.
// Scores inside the ranging band produce no trades at all; that is the
// strategy's chop filter, not an error.
type Personal struct {
	cfg       PersonalConfig
	router    *exchange.Router
	alerts    *resilience.AlertManager
	now       func() time.Time
	windows   map[string][]float64
	positions map[string]*position
	realized  float64
}

// NewPersonal builds the day-trading agent.
func NewPersonal(cfg PersonalConfig, router *exchange.Router, alerts *resilience.AlertManager) *Personal {
	if cfg.WindowSize < minSignalWindow {
		cfg.WindowSize = minSignalWindow
	}
	return &Personal{
		cfg:       cfg,
		router:    router,
		alerts:    alerts,
		now:       time.Now,
		windows:   make(map[string][]float64, len(cfg.Assets)),
		positions: make(map[string]*position, len(cfg.Assets)),
	}
}

// SetNow injects the clock used to stamp entries; tests only.
func (p *Personal) SetNow(now func() time.Time) { p.now = now }

func (p *Personal) Name() string             { return p.cfg.Name }
func (p *Personal) Type() tradelog.AgentType { return tradelog.Personal }

// SeedHistory preloads an asset's rolling window so the indicators
// produce signals from the first cycle.
func (p *Personal) SeedHistory(asset string, closes []float64) {
	for _, c := range closes {
		p.observe(asset, c)
	}
}

func (p *Personal) observe(asset string, close float64) {
	w := append(p.windows[asset], close)
	if len(w) > p.cfg.WindowSize {
		w = w[len(w)-p.cfg.WindowSize:]
	}
	p.windows[asset] = w
}

// score blends RSI and the Bollinger %B position into a single 0..100
// reading. Both halves read 50 on a market with no usable signal.
func (p *Personal) score(asset string) float64 {
	closes := p.windows[asset]
	if len(closes) < minSignalWindow {
		return neutralScore
	}

	_, rsi := indicator.Rsi(closes)
	_, upper, lower := indicator.BollingerBands(closes)

	last := len(closes) - 1
	r := rsi[last]

	pb := 50.0
	if band := upper[last] - lower[last]; band > 0 {
		pb = (closes[last] - lower[last]) / band * 100
	}

	s := 0.5*r + 0.5*pb
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return neutralScore
	}
	return math.Max(0, math.Min(100, s))
}

// RunCycle prices every asset, updates the rolling windows, scores the
// composite, and trades only outside the ranging band. A quiet cycle
// still yields a complete entry.
func (p *Personal) RunCycle(ctx context.Context, mode tradelog.Mode) (tradelog.Entry, error) {
	report := &tradelog.PersonalReport{
		Score:  neutralScore,
		Orders: make([]tradelog.OrderRecord, 0, len(p.cfg.Assets)),
	}

	perAsset := 0.0
	if n := len(p.cfg.Assets); n > 0 {
		perAsset = p.cfg.DailyBudget / float64(n)
	}

	var scoreSum float64
	scored := 0

	for _, asset := range p.cfg.Assets {
		ex, err := p.router.For(asset)
		if err != nil {
			p.skip(report, asset, err)
			continue
		}

		q, err := ex.GetPrice(ctx, asset)
		if err != nil {
			p.skip(report, asset, err)
			continue
		}
		p.observe(asset, q.Price)

		s := p.score(asset)
		scoreSum += s
		scored++

		if s >= p.cfg.RangeLow && s <= p.cfg.RangeHigh {
			continue // ranging market, sit on hands
		}
		if !q.UsableForSizing(p.now()) {
			p.skip(report, asset, errPriceTooOld)
			continue
		}

		if s < p.cfg.RangeLow {
			p.buy(ctx, ex, asset, q, perAsset, report)
		} else {
			p.sell(ctx, ex, asset, q, perAsset, report)
		}
	}

	if scored > 0 {
		report.Score = scoreSum / float64(scored)
	}

	// Mark open positions to the freshest close in each window.
	for asset, pos := range p.positions {
		if pos.qty <= 0 {
			continue
		}
		if w := p.windows[asset]; len(w) > 0 {
			value := pos.qty * w[len(w)-1]
			report.PortfolioValue += value
			report.UnrealizedPL += value - pos.cost
		}
	}
	report.RealizedPL = p.realized

	return tradelog.Entry{
		ID:        id.New(),
		Agent:     p.cfg.Name,
		AgentType: tradelog.Personal,
		Mode:      mode,
		Time:      p.now().UTC(),
		Personal:  report,
	}, nil
}

var errPriceTooOld = errors.New("price too old for order sizing")

func (p *Personal) skip(report *tradelog.PersonalReport, asset string, err error) {
	p.alerts.Warn(p.cfg.Name, "asset skipped this cycle", "asset", asset, "error", err.Error())
	report.Orders = append(report.Orders, tradelog.OrderRecord{
		Asset:  asset,
		Status: tradelog.StatusSkipped,
		Error:  err.Error(),
	})
}

func (p *Personal) buy(ctx context.Context, ex exchange.Exchange, asset string, q exchange.Quote, amount float64, report *tradelog.PersonalReport) {
	if amount <= 0 {
		return
	}
	res, err := ex.PlaceOrder(ctx, exchange.OrderRequest{
		Asset: asset, Side: exchange.Buy, QuoteAmount: amount, Quote: q,
	})
	if err != nil {
		p.fail(report, asset, exchange.Buy, amount, q.Price, err)
		return
	}

	pos := p.positions[asset]
	if pos == nil {
		pos = &position{}
		p.positions[asset] = pos
	}
	pos.qty += res.FilledQty
	pos.cost += amount

	report.Trades++
	report.Buys++
	report.Orders = append(report.Orders, tradelog.OrderRecord{
		OrderID:     res.OrderID,
		Asset:       asset,
		Side:        string(exchange.Buy),
		QuoteAmount: amount,
		Price:       res.Price,
		Status:      tradelog.StatusFilled,
	})
}

func (p *Personal) sell(ctx context.Context, ex exchange.Exchange, asset string, q exchange.Quote, amount float64, report *tradelog.PersonalReport) {
	pos := p.positions[asset]
	if pos == nil || pos.qty <= 0 {
		return // nothing held, nothing to sell
	}

	held := pos.qty * q.Price
	if held < amount {
		amount = held
	}
	if amount <= 0 {
		return
	}

	res, err := ex.PlaceOrder(ctx, exchange.OrderRequest{
		Asset: asset, Side: exchange.Sell, QuoteAmount: amount, Quote: q,
	})
	if err != nil {
		p.fail(report, asset, exchange.Sell, amount, q.Price, err)
		return
	}

	// Average-cost accounting: selling releases a proportional slice of
	// the open cost basis.
	soldQty := res.FilledQty
	if soldQty > pos.qty {
		soldQty = pos.qty
	}
	costOut := pos.cost * (soldQty / pos.qty)
	p.realized += res.QuoteAmount - costOut
	pos.qty -= soldQty
	pos.cost -= costOut
	if pos.qty <= 0 {
		pos.qty, pos.cost = 0, 0
	}

	report.Trades++
	report.Sells++
	report.Orders = append(report.Orders, tradelog.OrderRecord{
		OrderID:     res.OrderID,
		Asset:       asset,
		Side:        string(exchange.Sell),
		QuoteAmount: res.QuoteAmount,
		Price:       res.Price,
		Status:      tradelog.StatusFilled,
	})
}

func (p *Personal) fail(report *tradelog.PersonalReport, asset string, side exchange.Side, amount, price float64, err error) {
	p.alerts.Error(p.cfg.Name, "order failed", "asset", asset, "error", err.Error())
	report.Orders = append(report.Orders, tradelog.OrderRecord{
		Asset:       asset,
		Side:        string(side),
		QuoteAmount: amount,
		Price:       price,
		Status:      tradelog.StatusFailed,
		Error:       err.Error(),
	})
}
