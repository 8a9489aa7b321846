package market

import (
	"context"
	"time"
)

// Candle is one OHLCV bar, oldest-first when returned in slices.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Ticker is a point-in-time snapshot used for ranking the universe.
type Ticker struct {
	Market           string
	TradePrice       float64
	ChangeRate       float64 // signed 24h change
	AccTradePrice24h float64 // 24h quote-currency turnover
}

// Holding is one asset balance on the exchange account.
type Holding struct {
	Currency    string
	Balance     float64
	Locked      float64
	AvgBuyPrice float64
}

// OrderResult reports an accepted order.
type OrderResult struct {
	ID       string
	Market   string
	Side     string
	Price    float64
	Quantity float64
}

// Data is the exchange surface the trading loop consumes. Implementations
// must be safe for concurrent use.
type Data interface {
	// CurrentPrice returns the last trade price for a market.
	CurrentPrice(ctx context.Context, market string) (float64, error)
	// BestBid returns the top bid from the order book.
	BestBid(ctx context.Context, market string) (float64, error)
	// Candles returns up to count minute candles, oldest first.
	Candles(ctx context.Context, market string, unit, count int) ([]Candle, error)
	// DayCandles returns up to count daily candles, oldest first.
	DayCandles(ctx context.Context, market string, count int) ([]Candle, error)
	// Tickers returns snapshots for the given markets.
	Tickers(ctx context.Context, markets []string) ([]Ticker, error)
	// Holdings returns the account balances.
	Holdings(ctx context.Context) ([]Holding, error)
	// MarketBuy spends amount of quote currency at market.
	MarketBuy(ctx context.Context, market string, amount float64) (OrderResult, error)
	// MarketSell sells quantity of base currency at market.
	MarketSell(ctx context.Context, market string, quantity float64) (OrderResult, error)
}
