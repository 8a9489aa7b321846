package bot

import (
	"context"
	"log"
	"time"

	"trading-bot/internal/events"
	"trading-bot/internal/features"
	"trading-bot/internal/predictor"
	"trading-bot/pkg/db"
)

// Mean-reversion entry gate: oversold RSI or price hugging the lower
// Bollinger band.
const (
	oversoldRSI    = 30.0
	lowerBandLimit = 0.2
)

// candleWindow is the minute history fetched per evaluation.
const candleWindow = 60

// evaluateEntry runs the entry decision for one watchlisted market without
// an open position. Entry requires BOTH the model gate (up with enough
// confidence) and the mean-reversion gate; the conjunction deliberately
// trades recall for fewer false entries.
func (b *Bot) evaluateEntry(ctx context.Context, mkt string) {
	price, err := b.data.CurrentPrice(ctx, mkt)
	if err != nil {
		log.Printf("entry %s: price fetch failed: %v", mkt, err)
		b.countError()
		return
	}
	b.publish(events.EventPriceTick, events.PriceTick{Market: mkt, Price: price, Time: time.Now()})

	// A cooldown can coexist with watchlist membership after a manual
	// toggle; respect it here too.
	b.mu.Lock()
	allowed := b.cool.Allow(mkt, price)
	b.mu.Unlock()
	if !allowed {
		return
	}

	candles, err := b.data.Candles(ctx, mkt, 1, candleWindow)
	if err != nil {
		log.Printf("entry %s: candle fetch failed: %v", mkt, err)
		b.countError()
		return
	}
	f := features.Extract(candles)
	if f == nil {
		// Thin history is a skip, not an error.
		return
	}

	pred, err := b.model.Predict(ctx, f)
	if err != nil {
		log.Printf("entry %s: predict failed: %v", mkt, err)
		b.countError()
		return
	}

	aiGate := pred.Direction == predictor.Up && pred.Confidence > b.cfg.ConfidenceThreshold
	reversionGate := f["rsi"] < oversoldRSI || f["bb_position"] < lowerBandLimit
	if !aiGate || !reversionGate {
		return
	}

	if b.cfg.TradeAmount < b.cfg.MinOrderAmount {
		log.Printf("entry %s: trade amount %.0f below exchange minimum %.0f, skipping",
			mkt, b.cfg.TradeAmount, b.cfg.MinOrderAmount)
		return
	}

	log.Printf("entry signal: %s at %.2f (confidence %.2f, rsi %.1f, bb %.2f)",
		mkt, price, pred.Confidence, f["rsi"], f["bb_position"])

	if !b.execute {
		log.Printf("entry %s: execution disabled, order not sent", mkt)
		return
	}

	order, err := b.data.MarketBuy(ctx, mkt, b.cfg.TradeAmount)
	if err != nil {
		// Order rejected: no position may exist without a confirmed order.
		log.Printf("entry %s: buy failed: %v", mkt, err)
		b.countError()
		return
	}
	if b.mon != nil {
		b.mon.IncrementOrders()
	}

	entryPrice := price
	if order.Price > 0 {
		entryPrice = order.Price
	}
	quantity := b.cfg.TradeAmount / entryPrice
	if order.Quantity > 0 {
		quantity = order.Quantity
	}

	tradeID, err := b.ledger.RecordEntry(ctx, db.Trade{
		Market:          mkt,
		EntryPrice:      entryPrice,
		Quantity:        quantity,
		ModelConfidence: pred.Confidence,
		Features:        f,
	})
	if err != nil {
		// The position is real even if the ledger write failed; track it
		// without an id and keep going.
		log.Printf("entry %s: ledger write failed: %v", mkt, err)
		tradeID = 0
	}

	b.mu.Lock()
	b.positions[mkt] = &Position{
		Market:     mkt,
		TradeID:    tradeID,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		OpenedAt:   time.Now(),
		Confidence: pred.Confidence,
	}
	if !b.watch.Contains(mkt) {
		b.watch.Admit(mkt, b.defaultOrigin)
	}
	b.mu.Unlock()

	log.Printf("position opened: %s qty %.8f at %.2f", mkt, quantity, entryPrice)
	b.publish(events.EventPositionOpened, events.PositionUpdate{
		Market: mkt, Side: "buy", Price: entryPrice, Quantity: quantity,
	})
}

func (b *Bot) countError() {
	if b.mon != nil {
		b.mon.IncrementErrors()
	}
}
