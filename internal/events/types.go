package events

import "time"

// Event enumerates high-level topics inside the bot.
type Event string

const (
	EventPriceTick          Event = "price_tick"
	EventPositionOpened     Event = "position.opened"
	EventPositionClosed     Event = "position.closed"
	EventPositionRecovered  Event = "position.recovered"
	EventWatchlistChanged   Event = "watchlist_changed"
	EventCooldownReleased   Event = "cooldown_released"
	EventModelRetrained     Event = "model_retrained"
	EventRecommendationsNew Event = "recommendations_new"
)

// PriceTick is published once per evaluated market per loop pass.
type PriceTick struct {
	Market string    `json:"market"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// PositionUpdate describes an open or close transition.
type PositionUpdate struct {
	Market     string  `json:"market"`
	Side       string  `json:"side"` // "buy" or "sell"
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	ProfitRate float64 `json:"profit_rate,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// WatchlistUpdate carries the watchlist after a membership change.
type WatchlistUpdate struct {
	Markets []string `json:"markets"`
}

// RetrainResult is published after a training run.
type RetrainResult struct {
	Accuracy    float64 `json:"accuracy"`
	SampleCount int     `json:"sample_count"`
}
