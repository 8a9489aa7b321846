package upbit

// Wire types for the Upbit REST API. Numeric fields arrive as JSON numbers
// on market data endpoints and as strings on account endpoints.

type tickerResponse struct {
	Market           string  `json:"market"`
	TradePrice       float64 `json:"trade_price"`
	SignedChangeRate float64 `json:"signed_change_rate"`
	AccTradePrice24h float64 `json:"acc_trade_price_24h"`
}

type candleResponse struct {
	Market       string  `json:"market"`
	DateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice float64 `json:"opening_price"`
	HighPrice    float64 `json:"high_price"`
	LowPrice     float64 `json:"low_price"`
	TradePrice   float64 `json:"trade_price"`
	AccVolume    float64 `json:"candle_acc_trade_volume"`
}

type orderbookUnit struct {
	AskPrice float64 `json:"ask_price"`
	BidPrice float64 `json:"bid_price"`
	AskSize  float64 `json:"ask_size"`
	BidSize  float64 `json:"bid_size"`
}

type orderbookResponse struct {
	Market string          `json:"market"`
	Units  []orderbookUnit `json:"orderbook_units"`
}

type accountResponse struct {
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	Locked      string `json:"locked"`
	AvgBuyPrice string `json:"avg_buy_price"`
}

type orderResponse struct {
	UUID    string `json:"uuid"`
	Market  string `json:"market"`
	Side    string `json:"side"`
	OrdType string `json:"ord_type"`
	Price   string `json:"price"`
	Volume  string `json:"volume"`
	State   string `json:"state"`
}

type errorResponse struct {
	Error struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}
