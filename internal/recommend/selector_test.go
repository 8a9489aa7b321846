package recommend

import (
	"context"
	"testing"
	"time"

	"trading-bot/internal/market"
	"trading-bot/internal/predictor"
)

func risingCandles(n int, start float64) []market.Candle {
	out := make([]market.Candle, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := start + float64(i)
		out[i] = market.Candle{
			Time: base.Add(time.Duration(i) * time.Minute),
			Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: 100,
		}
	}
	return out
}

func newTestSelector(universe []string, offset, width int) (*Selector, *market.Mock) {
	mock := market.NewMock()
	return NewSelector(universe, offset, width, mock, predictor.NewLocal()), mock
}

func TestTopNScansOnlyItsWindow(t *testing.T) {
	universe := []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"}
	sel, mock := newTestSelector(universe, 0, 2)

	// Turnover ranking: BTC > ETH > XRP.
	mock.SetTicker(market.Ticker{Market: "KRW-BTC", TradePrice: 100, AccTradePrice24h: 3000})
	mock.SetTicker(market.Ticker{Market: "KRW-ETH", TradePrice: 50, AccTradePrice24h: 2000})
	mock.SetTicker(market.Ticker{Market: "KRW-XRP", TradePrice: 1, AccTradePrice24h: 1000})
	for _, m := range universe {
		mock.SetCandles(m, risingCandles(60, 100))
	}

	got, origin, err := sel.TopN(context.Background(), 5)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if origin != (Range{Start: 0, End: 2}) {
		t.Fatalf("origin = %+v, want {0 2}", origin)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want the 2 in the window", len(got))
	}
	for _, c := range got {
		if c.Market == "KRW-XRP" {
			t.Fatal("candidate from outside the scan window")
		}
	}
}

func TestTopNSkipsThinHistory(t *testing.T) {
	universe := []string{"KRW-BTC", "KRW-ETH"}
	sel, mock := newTestSelector(universe, 0, 2)

	mock.SetTicker(market.Ticker{Market: "KRW-BTC", TradePrice: 100, AccTradePrice24h: 2000})
	mock.SetTicker(market.Ticker{Market: "KRW-ETH", TradePrice: 50, AccTradePrice24h: 1000})
	mock.SetCandles("KRW-BTC", risingCandles(60, 100))
	mock.SetCandles("KRW-ETH", risingCandles(10, 50)) // below extraction minimum

	got, _, err := sel.TopN(context.Background(), 5)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(got) != 1 || got[0].Market != "KRW-BTC" {
		t.Fatalf("candidates = %+v, want only KRW-BTC", got)
	}
}

func TestTopNTruncatesToN(t *testing.T) {
	universe := []string{"KRW-BTC", "KRW-ETH", "KRW-XRP"}
	sel, mock := newTestSelector(universe, 0, 3)
	for i, m := range universe {
		mock.SetTicker(market.Ticker{Market: m, TradePrice: 100, AccTradePrice24h: float64(3000 - i*500)})
		mock.SetCandles(m, risingCandles(60, 100))
	}

	got, _, err := sel.TopN(context.Background(), 1)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	// Scores are ordered best-first; the top pick carries the best rank.
	if got[0].Market != "KRW-BTC" {
		t.Fatalf("top candidate = %s, want the highest-ranked market", got[0].Market)
	}
}

func TestOriginIsStable(t *testing.T) {
	sel, mock := newTestSelector([]string{"KRW-BTC"}, 10, 20)
	mock.SetTicker(market.Ticker{Market: "KRW-BTC", TradePrice: 100, AccTradePrice24h: 1000})

	// The window identity must not depend on how much of the universe
	// actually resolved.
	got, origin, err := sel.TopN(context.Background(), 5)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if origin != (Range{Start: 10, End: 30}) {
		t.Fatalf("origin = %+v, want {10 30}", origin)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty batch, got %+v", got)
	}
}
