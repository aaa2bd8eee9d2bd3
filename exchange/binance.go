package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// BinanceExchange trades one Binance account (one credential pair)
// through the spot REST API. It exposes only the Exchange contract;
// everything Binance-specific stays below this boundary.
type BinanceExchange struct {
	accountID string
	quote     string
	client    *binance.Client
}

// NewBinance builds a live adapter for one account. quote is the quote
// currency symbols are built against ("BTC" + "USDT" -> "BTCUSDT").
func NewBinance(accountID, quote, apiKey, apiSecret string) *BinanceExchange {
	client := binance.NewClient(apiKey, apiSecret)
	client.HTTPClient.Timeout = 15 * time.Second
	return &BinanceExchange{
		accountID: accountID,
		quote:     quote,
		client:    client,
	}
}

func (b *BinanceExchange) Name() string { return "binance" }

func (b *BinanceExchange) GetBalances(ctx context.Context) (map[string]float64, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance %s: get account: %w", b.accountID, err)
	}

	out := make(map[string]float64)
	for _, bal := range acct.Balances {
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			return nil, fmt.Errorf("binance %s: parse balance %q for %s: %w", b.accountID, bal.Free, bal.Asset, err)
		}
		if free.IsZero() {
			continue
		}
		out[bal.Asset] = free.InexactFloat64()
	}
	return out, nil
}

func (b *BinanceExchange) GetPrice(ctx context.Context, asset string) (Quote, error) {
	symbol := asset + b.quote
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("binance %s: list prices %s: %w", b.accountID, symbol, err)
	}
	if len(prices) == 0 {
		return Quote{}, fmt.Errorf("binance %s: no price returned for %s", b.accountID, symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return Quote{}, fmt.Errorf("binance %s: parse price %q for %s: %w", b.accountID, prices[0].Price, symbol, err)
	}

	return Quote{Asset: asset, Price: price.InexactFloat64(), At: time.Now()}, nil
}

// PlaceOrder submits a market order sized in quote currency via
// quoteOrderQty, so fills match the agent's budget math exactly.
func (b *BinanceExchange) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := req.Validate(); err != nil {
		return OrderResult{}, err
	}

	side := binance.SideTypeBuy
	if req.Side == Sell {
		side = binance.SideTypeSell
	}

	// Binance rejects quote quantities with more than 8 decimals; 2 is
	// plenty for USD-quoted budgets.
	quoteQty := decimal.NewFromFloat(req.QuoteAmount).Round(2)

	res, err := b.client.NewCreateOrderService().
		Symbol(req.Asset + b.quote).
		Side(side).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(quoteQty.String()).
		Do(ctx)
	if err != nil {
		return OrderResult{}, fmt.Errorf("binance %s: create order %s %s: %w", b.accountID, req.Side, req.Asset, err)
	}

	filled, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return OrderResult{}, fmt.Errorf("binance %s: parse executed quantity %q: %w", b.accountID, res.ExecutedQuantity, err)
	}

	spent, err := decimal.NewFromString(res.CummulativeQuoteQuantity)
	if err != nil {
		return OrderResult{}, fmt.Errorf("binance %s: parse quote quantity %q: %w", b.accountID, res.CummulativeQuoteQuantity, err)
	}

	avgPrice := 0.0
	if !filled.IsZero() {
		avgPrice = spent.Div(filled).InexactFloat64()
	}

	return OrderResult{
		OrderID:     strconv.FormatInt(res.OrderID, 10),
		Asset:       req.Asset,
		Side:        req.Side,
		QuoteAmount: spent.InexactFloat64(),
		FilledQty:   filled.InexactFloat64(),
		Price:       avgPrice,
		Time:        time.UnixMilli(res.TransactTime),
	}, nil
}
