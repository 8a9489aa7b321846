package upbit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, func()) {
	ts := httptest.NewServer(handler)
	c := NewClient("test-access", "test-secret", ts.URL)
	return c, ts.Close
}

func TestCandlesReversedOldestFirst(t *testing.T) {
	c, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/candles/minutes/1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("market"); got != "KRW-BTC" {
			t.Errorf("market = %s", got)
		}
		// Newest first, as the exchange serves them.
		w.Write([]byte(`[
			{"market":"KRW-BTC","candle_date_time_utc":"2025-01-01T00:02:00","opening_price":102,"high_price":103,"low_price":101,"trade_price":102.5,"candle_acc_trade_volume":30},
			{"market":"KRW-BTC","candle_date_time_utc":"2025-01-01T00:01:00","opening_price":101,"high_price":102,"low_price":100,"trade_price":101.5,"candle_acc_trade_volume":20},
			{"market":"KRW-BTC","candle_date_time_utc":"2025-01-01T00:00:00","opening_price":100,"high_price":101,"low_price":99,"trade_price":100.5,"candle_acc_trade_volume":10}
		]`))
	}))
	defer done()

	candles, err := c.Candles(context.Background(), "KRW-BTC", 1, 3)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles", len(candles))
	}
	if candles[0].Close != 100.5 || candles[2].Close != 102.5 {
		t.Fatalf("candles not oldest first: %+v", candles)
	}
	if !candles[0].Time.Before(candles[1].Time) {
		t.Fatal("timestamps not ascending")
	}
}

func TestHoldingsSignedAndParsed(t *testing.T) {
	c, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) < 20 {
			t.Errorf("missing bearer token, got %q", auth)
		}
		w.Write([]byte(`[
			{"currency":"KRW","balance":"150000.0","locked":"0.0","avg_buy_price":"0"},
			{"currency":"BTC","balance":"0.5","locked":"0.1","avg_buy_price":"9800.25"}
		]`))
	}))
	defer done()

	holdings, err := c.Holdings(context.Background())
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("got %d holdings", len(holdings))
	}
	btc := holdings[1]
	if btc.Currency != "BTC" || btc.Balance != 0.5 || btc.Locked != 0.1 || btc.AvgBuyPrice != 9800.25 {
		t.Fatalf("unexpected holding: %+v", btc)
	}
}

func TestMarketOrdersSendUpbitParams(t *testing.T) {
	var buyForm, sellForm map[string]string
	c, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		switch form["side"] {
		case "bid":
			buyForm = form
		case "ask":
			sellForm = form
		}
		w.Write([]byte(`{"uuid":"ord-1","market":"KRW-BTC","side":"` + form["side"] + `","price":"","volume":""}`))
	}))
	defer done()

	ctx := context.Background()
	if _, err := c.MarketBuy(ctx, "KRW-BTC", 10000); err != nil {
		t.Fatalf("MarketBuy: %v", err)
	}
	if _, err := c.MarketSell(ctx, "KRW-BTC", 0.25); err != nil {
		t.Fatalf("MarketSell: %v", err)
	}

	if buyForm["ord_type"] != "price" || buyForm["price"] != "10000" || buyForm["volume"] != "" {
		t.Fatalf("buy params: %+v", buyForm)
	}
	if sellForm["ord_type"] != "market" || sellForm["volume"] != "0.25" || sellForm["price"] != "" {
		t.Fatalf("sell params: %+v", sellForm)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	c, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"name":"insufficient_funds_bid","message":"not enough balance"}}`))
	}))
	defer done()

	_, err := c.MarketBuy(context.Background(), "KRW-BTC", 10000)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "insufficient_funds_bid") {
		t.Fatalf("error missing exchange code: %v", err)
	}
}

func TestBestBidFromOrderbook(t *testing.T) {
	c, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orderbook" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"market":"KRW-BTC","orderbook_units":[
			{"ask_price":10010,"bid_price":10000,"ask_size":1,"bid_size":2},
			{"ask_price":10020,"bid_price":9990,"ask_size":1,"bid_size":2}
		]}]`))
	}))
	defer done()

	bid, err := c.BestBid(context.Background(), "KRW-BTC")
	if err != nil {
		t.Fatalf("BestBid: %v", err)
	}
	if bid != 10000 {
		t.Fatalf("bid = %v, want 10000", bid)
	}
}
