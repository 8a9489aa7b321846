package bot

import (
	"context"
	"log"
	"time"

	"trading-bot/internal/cooldown"
	"trading-bot/internal/events"
	"trading-bot/internal/features"
	"trading-bot/internal/predictor"
	"trading-bot/pkg/db"
)

// upperBandLimit marks the band-exhaustion exit: price pinned to the very
// top of the Bollinger band is treated as a timing exit even before the
// profit target is reached.
const upperBandLimit = 0.95

// sessionWinBuffer: a session win must clear the round-trip fee, matching
// the ledger's rule.
const sessionWinBuffer = 0.001

// Exit reasons recorded in the ledger.
const (
	exitTargetProfit   = "target_profit"
	exitStopLoss       = "stop_loss"
	exitBandExhaustion = "band_exhaustion"
)

// evaluateExit runs the exit decision for one open position. Rules fire
// first-match in fixed priority: profit target, stop loss, band exhaustion.
func (b *Bot) evaluateExit(ctx context.Context, mkt string) {
	b.mu.Lock()
	p, ok := b.positions[mkt]
	if !ok {
		b.mu.Unlock()
		return
	}
	pos := *p
	b.mu.Unlock()

	price, err := b.data.CurrentPrice(ctx, mkt)
	if err != nil {
		log.Printf("exit %s: price fetch failed: %v", mkt, err)
		b.countError()
		return
	}
	b.publish(events.EventPriceTick, events.PriceTick{Market: mkt, Price: price, Time: time.Now()})

	profitRate := (price - pos.EntryPrice) / pos.EntryPrice

	var reason string
	var class cooldown.Reason
	switch {
	case profitRate >= b.cfg.TargetProfit:
		reason, class = exitTargetProfit, cooldown.ReasonProfit
	case profitRate <= -b.cfg.StopLoss:
		reason, class = exitStopLoss, cooldown.ReasonLoss
	default:
		candles, err := b.data.Candles(ctx, mkt, 1, candleWindow)
		if err != nil {
			return
		}
		f := features.Extract(candles)
		if f == nil || f["bb_position"] <= upperBandLimit {
			return
		}
		reason, class = exitBandExhaustion, cooldown.ReasonProfit
	}

	log.Printf("exit signal: %s %.2f%% (%s)", mkt, profitRate*100, reason)
	b.executeSell(ctx, pos, reason, class)
}

// executeSell reconciles the remembered quantity against live holdings,
// checks the proceeds floor, places the sell and applies the close as one
// atomic state transition: position out, cooldown armed, watchlist entry
// removed.
func (b *Bot) executeSell(ctx context.Context, pos Position, reason string, class cooldown.Reason) {
	mkt := pos.Market

	holdings, err := b.data.Holdings(ctx)
	if err != nil {
		log.Printf("sell %s: holdings fetch failed: %v", mkt, err)
		b.countError()
		return
	}
	held := 0.0
	for _, h := range holdings {
		if b.marketFor(h.Currency) == mkt {
			held = h.Balance
			break
		}
	}

	if held <= 0 {
		// Already liquidated externally; close locally without an order,
		// a ledger update or a cooldown.
		b.mu.Lock()
		delete(b.positions, mkt)
		b.watch.Remove(mkt)
		b.mu.Unlock()
		log.Printf("sell %s: nothing held on exchange, position dropped", mkt)
		b.publish(events.EventPositionClosed, events.PositionUpdate{
			Market: mkt, Side: "sell", Reason: "external",
		})
		b.publishWatchlist()
		return
	}

	quantity := pos.Quantity
	if held < quantity {
		log.Printf("sell %s: holdings %.8f below remembered %.8f, selling actual", mkt, held, quantity)
		quantity = held
	}

	bid, err := b.data.BestBid(ctx, mkt)
	if err != nil {
		log.Printf("sell %s: bid fetch failed: %v", mkt, err)
		b.countError()
		return
	}

	// The exchange rejects sells below the minimum notional; a small
	// tolerance absorbs bid drift between the check and the order. The
	// position stays open and is re-checked next tick.
	minProceeds := b.cfg.MinOrderAmount - 10
	if quantity*bid < minProceeds {
		log.Printf("sell %s: proceeds %.0f below minimum %.0f, holding", mkt, quantity*bid, minProceeds)
		return
	}

	if !b.execute {
		log.Printf("sell %s: execution disabled, order not sent", mkt)
		return
	}

	order, err := b.data.MarketSell(ctx, mkt, quantity)
	if err != nil {
		log.Printf("sell %s: order failed: %v", mkt, err)
		b.countError()
		return
	}
	if b.mon != nil {
		b.mon.IncrementOrders()
	}

	exitPrice := bid
	if order.Price > 0 {
		exitPrice = order.Price
	}
	profitRate := (exitPrice - pos.EntryPrice) / pos.EntryPrice
	profitAmount := (exitPrice - pos.EntryPrice) * quantity

	// Atomic close: all three tables transition under one lock hold.
	b.mu.Lock()
	delete(b.positions, mkt)
	b.cool.Arm(mkt, exitPrice, class)
	b.watch.Remove(mkt)
	b.sessionTrades++
	if profitRate > sessionWinBuffer {
		b.sessionWins++
	}
	b.mu.Unlock()

	if pos.TradeID != 0 {
		if err := b.ledger.RecordExit(ctx, pos.TradeID, exitPrice, profitRate, profitAmount, reason); err != nil {
			log.Printf("sell %s: ledger update failed: %v", mkt, err)
		}
	}

	log.Printf("position closed: %s at %.2f (%+.2f%%, %s)", mkt, exitPrice, profitRate*100, reason)
	b.publish(events.EventPositionClosed, events.PositionUpdate{
		Market: mkt, Side: "sell", Price: exitPrice, Quantity: quantity,
		ProfitRate: profitRate, Reason: reason,
	})
	b.publishWatchlist()

	b.maybeRetrain(ctx)
}

// maybeRetrain fires when the closed-trade count is a positive multiple of
// the configured threshold.
func (b *Bot) maybeRetrain(ctx context.Context) {
	n, err := b.ledger.ClosedTradeCount(ctx)
	if err != nil {
		log.Printf("retrain check: %v", err)
		return
	}
	if n == 0 || b.cfg.RetrainThreshold <= 0 || n%b.cfg.RetrainThreshold != 0 {
		return
	}
	log.Printf("retrain trigger: %d closed trades", n)
	b.retrain(ctx, n)
}

// retrain fits the model on accumulated labeled samples. Any failure keeps
// the prior model; training is never fatal to the loop.
func (b *Bot) retrain(ctx context.Context, closedTrades int) {
	samples, err := b.ledger.LearningData(ctx, 500)
	if err != nil {
		log.Printf("retrain: learning data unavailable: %v", err)
		return
	}

	trainSet := make([]predictor.Sample, len(samples))
	for i, s := range samples {
		trainSet[i] = predictor.Sample{Features: s.Features, Label: s.Label}
	}

	accuracy, err := b.model.Train(ctx, trainSet)
	if err != nil {
		log.Printf("retrain failed, keeping current model: %v", err)
		return
	}

	if err := b.ledger.RecordModelPerformance(ctx, db.ModelRecord{
		Accuracy:     accuracy,
		SampleCount:  len(trainSet),
		ClosedTrades: closedTrades,
		ModelVersion: b.model.Metrics().Version,
	}); err != nil {
		log.Printf("retrain: audit record failed: %v", err)
	}

	log.Printf("model retrained: accuracy %.2f over %d samples", accuracy, len(trainSet))
	b.publish(events.EventModelRetrained, events.RetrainResult{
		Accuracy: accuracy, SampleCount: len(trainSet),
	})
}

// ForceRetrain runs a training pass immediately, regardless of the trade
// counter.
func (b *Bot) ForceRetrain(ctx context.Context) error {
	samples, err := b.ledger.LearningData(ctx, 500)
	if err != nil {
		return err
	}
	trainSet := make([]predictor.Sample, len(samples))
	for i, s := range samples {
		trainSet[i] = predictor.Sample{Features: s.Features, Label: s.Label}
	}
	accuracy, err := b.model.Train(ctx, trainSet)
	if err != nil {
		return err
	}
	n, _ := b.ledger.ClosedTradeCount(ctx)
	if err := b.ledger.RecordModelPerformance(ctx, db.ModelRecord{
		Accuracy:     accuracy,
		SampleCount:  len(trainSet),
		ClosedTrades: n,
		ModelVersion: b.model.Metrics().Version,
	}); err != nil {
		log.Printf("force retrain: audit record failed: %v", err)
	}
	b.publish(events.EventModelRetrained, events.RetrainResult{
		Accuracy: accuracy, SampleCount: len(trainSet),
	})
	return nil
}

// coldStartTraining bootstraps a blank model from daily history so the
// confidence gate is not pinned shut until the first live retrain.
func (b *Bot) coldStartTraining(ctx context.Context) {
	if b.model.Metrics().Trained {
		return
	}

	var trainSet []predictor.Sample
	for _, mkt := range b.cfg.Markets {
		candles, err := b.data.DayCandles(ctx, mkt, 90)
		if err != nil {
			log.Printf("cold start: day candles %s: %v", mkt, err)
			continue
		}
		for i := features.MinCandles; i < len(candles)-1; i++ {
			f := features.Extract(candles[:i+1])
			if f == nil {
				continue
			}
			label := 0
			if candles[i+1].Close > candles[i].Close {
				label = 1
			}
			trainSet = append(trainSet, predictor.Sample{Features: f, Label: label})
		}
	}

	accuracy, err := b.model.Train(ctx, trainSet)
	if err != nil {
		// Not enough history is fine; the model stays closed until live
		// trades accumulate.
		log.Printf("cold start training skipped: %v", err)
		return
	}
	log.Printf("cold start training complete: accuracy %.2f over %d samples", accuracy, len(trainSet))
}
