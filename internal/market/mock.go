package market

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory Data implementation for tests and dry runs.
type Mock struct {
	mu       sync.Mutex
	prices   map[string]float64
	bids     map[string]float64
	candles  map[string][]Candle
	days     map[string][]Candle
	tickers  map[string]Ticker
	holdings []Holding
	orders   []OrderResult
	failNext map[string]error
	orderSeq int
}

// NewMock builds an empty mock exchange.
func NewMock() *Mock {
	return &Mock{
		prices:   make(map[string]float64),
		bids:     make(map[string]float64),
		candles:  make(map[string][]Candle),
		days:     make(map[string][]Candle),
		tickers:  make(map[string]Ticker),
		failNext: make(map[string]error),
	}
}

// SetPrice sets both the trade price and the best bid.
func (m *Mock) SetPrice(market string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[market] = price
	m.bids[market] = price
}

// SetCandles installs minute candles for a market, oldest first.
func (m *Mock) SetCandles(market string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[market] = candles
}

// SetDayCandles installs daily candles for a market, oldest first.
func (m *Mock) SetDayCandles(market string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[market] = candles
}

// SetTicker installs a ranking snapshot.
func (m *Mock) SetTicker(t Ticker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickers[t.Market] = t
	m.prices[t.Market] = t.TradePrice
	m.bids[t.Market] = t.TradePrice
}

// SetHoldings replaces the account balances.
func (m *Mock) SetHoldings(h []Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = append([]Holding(nil), h...)
}

// FailNext makes the named call ("buy", "sell", "price") return err once.
func (m *Mock) FailNext(call string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[call] = err
}

// Orders returns every order accepted so far.
func (m *Mock) Orders() []OrderResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderResult(nil), m.orders...)
}

func (m *Mock) takeFailure(call string) error {
	if err, ok := m.failNext[call]; ok {
		delete(m.failNext, call)
		return err
	}
	return nil
}

func (m *Mock) CurrentPrice(_ context.Context, market string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("price"); err != nil {
		return 0, err
	}
	p, ok := m.prices[market]
	if !ok {
		return 0, fmt.Errorf("mock: no price for %s", market)
	}
	return p, nil
}

func (m *Mock) BestBid(_ context.Context, market string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[market]
	if !ok {
		return 0, fmt.Errorf("mock: no bid for %s", market)
	}
	return b, nil
}

func (m *Mock) Candles(_ context.Context, market string, _, count int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.candles[market]
	if len(c) > count {
		c = c[len(c)-count:]
	}
	return append([]Candle(nil), c...), nil
}

func (m *Mock) DayCandles(_ context.Context, market string, count int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.days[market]
	if len(c) > count {
		c = c[len(c)-count:]
	}
	return append([]Candle(nil), c...), nil
}

func (m *Mock) Tickers(_ context.Context, markets []string) ([]Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Ticker, 0, len(markets))
	for _, mk := range markets {
		if t, ok := m.tickers[mk]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Mock) Holdings(_ context.Context) ([]Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Holding(nil), m.holdings...), nil
}

func (m *Mock) MarketBuy(_ context.Context, market string, amount float64) (OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("buy"); err != nil {
		return OrderResult{}, err
	}
	price := m.prices[market]
	qty := 0.0
	if price > 0 {
		qty = amount / price
	}
	m.orderSeq++
	o := OrderResult{
		ID:       fmt.Sprintf("mock-%d", m.orderSeq),
		Market:   market,
		Side:     "bid",
		Price:    price,
		Quantity: qty,
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *Mock) MarketSell(_ context.Context, market string, quantity float64) (OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("sell"); err != nil {
		return OrderResult{}, err
	}
	m.orderSeq++
	o := OrderResult{
		ID:       fmt.Sprintf("mock-%d", m.orderSeq),
		Market:   market,
		Side:     "ask",
		Price:    m.bids[market],
		Quantity: quantity,
	}
	m.orders = append(m.orders, o)
	return o, nil
}
