// Package upbit is a REST client for the Upbit spot exchange, exposed
// through the bot's market data port.
package upbit

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"trading-bot/internal/market"
)

const defaultBaseURL = "https://api.upbit.com"

// candleTimeLayout is how Upbit formats candle_date_time_utc.
const candleTimeLayout = "2006-01-02T15:04:05"

// Client wraps REST access to Upbit and implements market.Data.
type Client struct {
	accessKey  string
	secretKey  string
	baseURL    string
	httpClient *http.Client

	// Upbit enforces separate quotas for quotation and exchange endpoints.
	publicLimiter  *rate.Limiter
	privateLimiter *rate.Limiter
}

// NewClient builds a REST client. Keys may be empty for public endpoints
// only; private calls will then fail with an auth error from the exchange.
func NewClient(accessKey, secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		accessKey:      accessKey,
		secretKey:      secretKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		publicLimiter:  rate.NewLimiter(rate.Limit(10), 10),
		privateLimiter: rate.NewLimiter(rate.Limit(8), 8),
	}
}

// CurrentPrice returns the last trade price for one market.
func (c *Client) CurrentPrice(ctx context.Context, mkt string) (float64, error) {
	tickers, err := c.tickers(ctx, []string{mkt})
	if err != nil {
		return 0, err
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("upbit: no ticker for %s", mkt)
	}
	return tickers[0].TradePrice, nil
}

// BestBid returns the top bid from the order book.
func (c *Client) BestBid(ctx context.Context, mkt string) (float64, error) {
	params := url.Values{}
	params.Set("markets", mkt)
	body, err := c.get(ctx, "/v1/orderbook", params)
	if err != nil {
		return 0, err
	}
	var books []orderbookResponse
	if err := json.Unmarshal(body, &books); err != nil {
		return 0, fmt.Errorf("upbit: decode orderbook: %w", err)
	}
	if len(books) == 0 || len(books[0].Units) == 0 {
		return 0, fmt.Errorf("upbit: empty orderbook for %s", mkt)
	}
	return books[0].Units[0].BidPrice, nil
}

// Candles returns minute candles, oldest first. Upbit serves newest first,
// so the response is reversed before conversion.
func (c *Client) Candles(ctx context.Context, mkt string, unit, count int) ([]market.Candle, error) {
	params := url.Values{}
	params.Set("market", mkt)
	params.Set("count", strconv.Itoa(count))
	body, err := c.get(ctx, fmt.Sprintf("/v1/candles/minutes/%d", unit), params)
	if err != nil {
		return nil, err
	}
	return decodeCandles(body)
}

// DayCandles returns daily candles, oldest first.
func (c *Client) DayCandles(ctx context.Context, mkt string, count int) ([]market.Candle, error) {
	params := url.Values{}
	params.Set("market", mkt)
	params.Set("count", strconv.Itoa(count))
	body, err := c.get(ctx, "/v1/candles/days", params)
	if err != nil {
		return nil, err
	}
	return decodeCandles(body)
}

// Tickers returns ranking snapshots for the given markets.
func (c *Client) Tickers(ctx context.Context, markets []string) ([]market.Ticker, error) {
	raw, err := c.tickers(ctx, markets)
	if err != nil {
		return nil, err
	}
	out := make([]market.Ticker, len(raw))
	for i, t := range raw {
		out[i] = market.Ticker{
			Market:           t.Market,
			TradePrice:       t.TradePrice,
			ChangeRate:       t.SignedChangeRate,
			AccTradePrice24h: t.AccTradePrice24h,
		}
	}
	return out, nil
}

// Holdings returns account balances.
func (c *Client) Holdings(ctx context.Context) ([]market.Holding, error) {
	body, err := c.signed(ctx, http.MethodGet, "/v1/accounts", nil)
	if err != nil {
		return nil, err
	}
	var accounts []accountResponse
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("upbit: decode accounts: %w", err)
	}
	out := make([]market.Holding, len(accounts))
	for i, a := range accounts {
		out[i] = market.Holding{
			Currency:    a.Currency,
			Balance:     parseFloat(a.Balance),
			Locked:      parseFloat(a.Locked),
			AvgBuyPrice: parseFloat(a.AvgBuyPrice),
		}
	}
	return out, nil
}

// MarketBuy places a market buy spending amount of the quote currency.
func (c *Client) MarketBuy(ctx context.Context, mkt string, amount float64) (market.OrderResult, error) {
	params := url.Values{}
	params.Set("market", mkt)
	params.Set("side", "bid")
	params.Set("ord_type", "price")
	params.Set("price", strconv.FormatFloat(amount, 'f', -1, 64))
	return c.placeOrder(ctx, params)
}

// MarketSell places a market sell of quantity in the base currency.
func (c *Client) MarketSell(ctx context.Context, mkt string, quantity float64) (market.OrderResult, error) {
	params := url.Values{}
	params.Set("market", mkt)
	params.Set("side", "ask")
	params.Set("ord_type", "market")
	params.Set("volume", strconv.FormatFloat(quantity, 'f', -1, 64))
	return c.placeOrder(ctx, params)
}

func (c *Client) placeOrder(ctx context.Context, params url.Values) (market.OrderResult, error) {
	body, err := c.signed(ctx, http.MethodPost, "/v1/orders", params)
	if err != nil {
		return market.OrderResult{}, err
	}
	var o orderResponse
	if err := json.Unmarshal(body, &o); err != nil {
		return market.OrderResult{}, fmt.Errorf("upbit: decode order: %w", err)
	}
	return market.OrderResult{
		ID:       o.UUID,
		Market:   o.Market,
		Side:     o.Side,
		Price:    parseFloat(o.Price),
		Quantity: parseFloat(o.Volume),
	}, nil
}

func (c *Client) tickers(ctx context.Context, markets []string) ([]tickerResponse, error) {
	params := url.Values{}
	params.Set("markets", strings.Join(markets, ","))
	body, err := c.get(ctx, "/v1/ticker", params)
	if err != nil {
		return nil, err
	}
	var tickers []tickerResponse
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("upbit: decode tickers: %w", err)
	}
	return tickers, nil
}

// get performs a public quotation request.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.publicLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, path)
}

// signed performs an authenticated exchange request. GET parameters go in
// the query string, POST parameters in a urlencoded body; either way the
// same encoded string is hashed into the token.
func (c *Client) signed(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.privateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.authToken(params)
	if err != nil {
		return nil, fmt.Errorf("upbit: sign request: %w", err)
	}

	u := c.baseURL + path
	var reqBody io.Reader
	if len(params) > 0 {
		if method == http.MethodGet {
			u += "?" + params.Encode()
		} else {
			reqBody = strings.NewReader(params.Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.do(req, path)
}

// authToken builds the per-request JWT Upbit expects: access key, a fresh
// nonce, and a SHA512 hash of the encoded parameters when any are sent.
func (c *Client) authToken(params url.Values) (string, error) {
	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if len(params) > 0 {
		sum := sha512.Sum512([]byte(params.Encode()))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.secretKey))
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Name != "" {
			return nil, fmt.Errorf("upbit %s status %d: %s (%s)",
				path, res.StatusCode, apiErr.Error.Message, apiErr.Error.Name)
		}
		return nil, fmt.Errorf("upbit %s status %d: %s", path, res.StatusCode, string(body))
	}
	return body, nil
}

func decodeCandles(body []byte) ([]market.Candle, error) {
	var raw []candleResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("upbit: decode candles: %w", err)
	}
	out := make([]market.Candle, len(raw))
	for i, cd := range raw {
		ts, _ := time.Parse(candleTimeLayout, cd.DateTimeUTC)
		// Upbit serves newest first; callers expect oldest first.
		out[len(raw)-1-i] = market.Candle{
			Time:   ts,
			Open:   cd.OpeningPrice,
			High:   cd.HighPrice,
			Low:    cd.LowPrice,
			Close:  cd.TradePrice,
			Volume: cd.AccVolume,
		}
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
