package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/cryptoagent/exchange"
	"github.com/rustyeddy/cryptoagent/tradelog"
)

func personalFixture(t *testing.T, balances map[string]float64) (*Personal, *exchange.PaperExchange) {
	t.Helper()

	paper := exchange.NewPaper("binance", "USDT", balances)
	router := exchange.NewRouter(map[string]exchange.Exchange{"SOL": paper}, nil, "")

	return NewPersonal(PersonalConfig{
		Name:        "day-bot",
		Quote:       "USDT",
		DailyBudget: 50,
		Assets:      []string{"SOL"},
		RangeLow:    40,
		RangeHigh:   60,
		WindowSize:  30,
	}, router, nil), paper
}

// declining yields n strictly falling closes ending at last.
func declining(n int, last float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = last + float64(n-1-i)
	}
	return out
}

// rising yields n strictly rising closes ending at last.
func rising(n int, last float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = last - float64(n-1-i)
	}
	return out
}

func TestPersonalShortWindowStaysNeutral(t *testing.T) {
	t.Parallel()

	p, paper := personalFixture(t, map[string]float64{"USDT": 1000})
	paper.SeedPrice("SOL", 100)

	entry, err := p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)
	require.NotNil(t, entry.Personal, "a quiet cycle still produces a full entry")

	r := entry.Personal
	assert.Equal(t, 50.0, r.Score)
	assert.Zero(t, r.Trades)
	assert.Empty(t, r.Orders)
}

func TestPersonalFlatMarketSitsInBand(t *testing.T) {
	t.Parallel()

	p, paper := personalFixture(t, map[string]float64{"USDT": 1000})
	paper.SeedPrice("SOL", 100)

	// A perfectly flat history collapses both indicator halves to 50.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	p.SeedHistory("SOL", closes)

	entry, err := p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)
	assert.Zero(t, entry.Personal.Trades, "score inside the ranging band never trades")
}

func TestPersonalBuysBelowBand(t *testing.T) {
	t.Parallel()

	p, paper := personalFixture(t, map[string]float64{"USDT": 1000})
	p.SeedHistory("SOL", declining(25, 101))
	paper.SeedPrice("SOL", 100)

	entry, err := p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)

	r := entry.Personal
	assert.Less(t, r.Score, 40.0, "steady selloff scores below the band")
	assert.Equal(t, 1, r.Trades)
	assert.Equal(t, 1, r.Buys)
	require.Len(t, r.Orders, 1)
	assert.Equal(t, string(exchange.Buy), r.Orders[0].Side)
	assert.InDelta(t, 50.0, r.Orders[0].QuoteAmount, 1e-9, "budget split per asset")
	assert.InDelta(t, 50.0, r.PortfolioValue, 1e-9)
}

func TestPersonalSellsAboveBandAndRealizesProfit(t *testing.T) {
	t.Parallel()

	p, paper := personalFixture(t, map[string]float64{"USDT": 1000})

	// Cycle 1: buy into the selloff at 100.
	p.SeedHistory("SOL", declining(25, 101))
	paper.SeedPrice("SOL", 100)
	entry, err := p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)
	require.Equal(t, 1, entry.Personal.Buys)

	// Cycle 2: price rallies to 130 and the score breaks above the band.
	p.SeedHistory("SOL", rising(30, 129))
	paper.SeedPrice("SOL", 130)
	entry, err = p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)

	r := entry.Personal
	assert.Greater(t, r.Score, 60.0, "rally scores above the band")
	assert.Equal(t, 1, r.Sells)
	require.Len(t, r.Orders, 1)
	assert.Equal(t, string(exchange.Sell), r.Orders[0].Side)
	assert.InDelta(t, 50.0, r.Orders[0].QuoteAmount, 1e-9, "sell capped at the per-asset budget")
	assert.Greater(t, r.RealizedPL, 0.0, "bought at 100, sold at 130")
}

func TestPersonalNeverSellsWhatItDoesNotHold(t *testing.T) {
	t.Parallel()

	p, paper := personalFixture(t, map[string]float64{"USDT": 1000})

	// Score breaks high with no open position: nothing to sell, no order.
	p.SeedHistory("SOL", rising(30, 129))
	paper.SeedPrice("SOL", 130)

	entry, err := p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)
	assert.Zero(t, entry.Personal.Trades)
	assert.Empty(t, entry.Personal.Orders)
}

func TestPersonalUnpricedAssetIsSkipped(t *testing.T) {
	t.Parallel()

	p, _ := personalFixture(t, map[string]float64{"USDT": 1000})

	entry, err := p.RunCycle(context.Background(), tradelog.Paper)
	require.NoError(t, err)

	require.Len(t, entry.Personal.Orders, 1)
	assert.Equal(t, tradelog.StatusSkipped, entry.Personal.Orders[0].Status)
}
