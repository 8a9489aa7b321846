package bot

import (
	"context"
	"errors"
	"log"
	"time"

	"trading-bot/internal/recommend"
	"trading-bot/pkg/db"
)

// ErrLastMarket guards the manual toggle: the watchlist never goes empty.
var ErrLastMarket = errors.New("cannot remove the last watchlist market")

// PositionView is a read-only snapshot of one open position.
type PositionView struct {
	Market       string    `json:"market"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	OpenedAt     time.Time `json:"opened_at"`
	Confidence   float64   `json:"confidence,omitempty"`
	Recovered    bool      `json:"recovered,omitempty"`
	CurrentPrice float64   `json:"current_price,omitempty"`
	ProfitRate   float64   `json:"profit_rate,omitempty"`
}

// WatchlistView is one watchlist entry with its hysteresis state.
type WatchlistView struct {
	Market      string `json:"market"`
	Absence     int    `json:"absence"`
	OriginStart int    `json:"origin_start"`
	OriginEnd   int    `json:"origin_end"`
	Positioned  bool   `json:"positioned"`
}

// CooldownView is one armed cooldown.
type CooldownView struct {
	Market    string    `json:"market"`
	ExitPrice float64   `json:"exit_price"`
	Reason    string    `json:"reason"`
	Since     time.Time `json:"since"`
}

// ModelView summarizes the predictor.
type ModelView struct {
	Trained     bool      `json:"trained"`
	Accuracy    float64   `json:"accuracy"`
	SampleCount int       `json:"sample_count"`
	TrainedAt   time.Time `json:"trained_at,omitzero"`
	Version     string    `json:"version,omitempty"`
}

// Status is the full state snapshot served to presentation layers.
type Status struct {
	Running         bool                  `json:"running"`
	Refreshing      bool                  `json:"refreshing"`
	Watchlist       []WatchlistView       `json:"watchlist"`
	Positions       []PositionView        `json:"positions"`
	Cooldowns       []CooldownView        `json:"cooldowns"`
	Recommendations []recommend.Candidate `json:"recommendations"`
	RecommendedAt   time.Time             `json:"recommended_at,omitzero"`
	SessionTrades   int                   `json:"session_trades"`
	SessionWins     int                   `json:"session_wins"`
	SessionWinRate  float64               `json:"session_win_rate"`
	Lifetime        db.Statistics         `json:"lifetime"`
	Model           ModelView             `json:"model"`
}

// Status assembles a consistent snapshot. The state is captured under one
// lock hold; ledger statistics are fetched outside it.
func (b *Bot) Status(ctx context.Context) Status {
	b.mu.Lock()
	s := Status{
		Running:       b.running,
		Refreshing:    b.refreshing,
		SessionTrades: b.sessionTrades,
		SessionWins:   b.sessionWins,
		RecommendedAt: b.lastBatchAt,
	}
	s.Recommendations = append(s.Recommendations, b.lastBatch...)
	for _, e := range b.watch.Entries() {
		_, held := b.positions[e.Market]
		s.Watchlist = append(s.Watchlist, WatchlistView{
			Market:      e.Market,
			Absence:     e.Absence,
			OriginStart: e.Origin.Start,
			OriginEnd:   e.Origin.End,
			Positioned:  held,
		})
	}
	for _, p := range b.positions {
		s.Positions = append(s.Positions, PositionView{
			Market:     p.Market,
			EntryPrice: p.EntryPrice,
			Quantity:   p.Quantity,
			OpenedAt:   p.OpenedAt,
			Confidence: p.Confidence,
			Recovered:  p.Recovered,
		})
	}
	for _, e := range b.cool.Entries() {
		s.Cooldowns = append(s.Cooldowns, CooldownView{
			Market:    e.Market,
			ExitPrice: e.ExitPrice,
			Reason:    string(e.Reason),
			Since:     e.Since,
		})
	}
	b.mu.Unlock()

	if s.SessionTrades > 0 {
		s.SessionWinRate = float64(s.SessionWins) / float64(s.SessionTrades)
	}

	if stats, err := b.ledger.Statistics(ctx); err == nil {
		s.Lifetime = stats
	} else {
		log.Printf("status: ledger statistics failed: %v", err)
	}

	m := b.model.Metrics()
	s.Model = ModelView{
		Trained:     m.Trained,
		Accuracy:    m.Accuracy,
		SampleCount: m.SampleCount,
		TrainedAt:   m.TrainedAt,
		Version:     m.Version,
	}

	// Enrich positions with live prices, best-effort.
	for i := range s.Positions {
		price, err := b.data.CurrentPrice(ctx, s.Positions[i].Market)
		if err != nil || price <= 0 {
			continue
		}
		s.Positions[i].CurrentPrice = price
		s.Positions[i].ProfitRate = (price - s.Positions[i].EntryPrice) / s.Positions[i].EntryPrice
	}
	return s
}

// ToggleMarket manually adds or removes a watchlist market. Removal keeps
// at least one market tracked and never orphans an open position.
func (b *Bot) ToggleMarket(mkt string) (added bool, err error) {
	b.mu.Lock()
	if b.watch.Contains(mkt) {
		if b.watch.Len() <= 1 {
			b.mu.Unlock()
			return false, ErrLastMarket
		}
		if _, held := b.positions[mkt]; held {
			b.mu.Unlock()
			return false, errors.New("cannot remove a market with an open position")
		}
		b.watch.Remove(mkt)
		b.mu.Unlock()
		log.Printf("watchlist toggle: removed %s", mkt)
		b.publishWatchlist()
		return false, nil
	}
	b.watch.Admit(mkt, b.defaultOrigin)
	b.mu.Unlock()
	log.Printf("watchlist toggle: added %s", mkt)
	b.publishWatchlist()
	return true, nil
}
