package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperBuyMovesBalances(t *testing.T) {
	t.Parallel()

	p := NewPaper("paper-biz", "USDT", map[string]float64{"USDT": 1000})
	p.SeedPrice("BTC", 50000)

	res, err := p.PlaceOrder(context.Background(), OrderRequest{
		Asset: "BTC", Side: Buy, QuoteAmount: 100,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.InDelta(t, 0.002, res.FilledQty, 1e-9)

	balances, err := p.GetBalances(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 900, balances["USDT"], 1e-9)
	assert.InDelta(t, 0.002, balances["BTC"], 1e-9)
}

func TestPaperSellRequiresHoldings(t *testing.T) {
	t.Parallel()

	p := NewPaper("paper-biz", "USDT", map[string]float64{"USDT": 1000})
	p.SeedPrice("ETH", 2000)

	_, err := p.PlaceOrder(context.Background(), OrderRequest{
		Asset: "ETH", Side: Sell, QuoteAmount: 100,
	})
	assert.ErrorContains(t, err, "insufficient ETH balance")
}

func TestPaperFeeRate(t *testing.T) {
	t.Parallel()

	p := NewPaper("paper-biz", "USDT", map[string]float64{"USDT": 1000}, WithFeeRate(0.001))
	p.SeedPrice("BTC", 50000)

	res, err := p.PlaceOrder(context.Background(), OrderRequest{
		Asset: "BTC", Side: Buy, QuoteAmount: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 100*(1-0.001)/50000, res.FilledQty, 1e-12)
}

func TestPaperRejectsNonPositiveQuoteAmount(t *testing.T) {
	t.Parallel()

	p := NewPaper("paper-biz", "USDT", map[string]float64{"USDT": 1000})
	p.SeedPrice("BTC", 50000)

	for _, amount := range []float64{0, -25} {
		_, err := p.PlaceOrder(context.Background(), OrderRequest{
			Asset: "BTC", Side: Buy, QuoteAmount: amount,
		})
		assert.ErrorContains(t, err, "quote amount must be positive")
	}
}

func TestPaperUnseededPriceFails(t *testing.T) {
	t.Parallel()

	p := NewPaper("paper-biz", "USDT", map[string]float64{"USDT": 1000})

	_, err := p.GetPrice(context.Background(), "DOGE")
	assert.ErrorContains(t, err, "no seeded price")

	_, err = p.PlaceOrder(context.Background(), OrderRequest{Asset: "DOGE", Side: Buy, QuoteAmount: 10})
	assert.ErrorContains(t, err, "no seeded price")
}

func TestPaperImplementsPriceSeeder(t *testing.T) {
	t.Parallel()

	var ex Exchange = NewPaper("paper-biz", "USDT", nil)
	seeder, ok := ex.(PriceSeeder)
	require.True(t, ok, "paper exchange must expose the price seeding capability")
	seeder.SeedPrice("BTC", 42000)

	q, err := ex.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 42000.0, q.Price)
	assert.False(t, q.Stale)
}
