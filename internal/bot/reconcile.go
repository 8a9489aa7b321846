package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-bot/internal/events"
)

// RecoverPositions rebuilds the position table from actual exchange
// holdings. Safe to run repeatedly: already-tracked markets are skipped, so
// unchanged holdings never produce duplicates. Synthesized positions carry
// no ledger id; their eventual close updates session counters only.
func (b *Bot) RecoverPositions(ctx context.Context) error {
	holdings, err := b.data.Holdings(ctx)
	if err != nil {
		return fmt.Errorf("list holdings: %w", err)
	}

	recovered := 0
	for _, h := range holdings {
		if h.Balance <= 0 {
			continue
		}
		market := b.marketFor(h.Currency)
		if market == "" {
			continue
		}

		b.mu.Lock()
		_, tracked := b.positions[market]
		b.mu.Unlock()
		if tracked {
			continue
		}

		entryPrice := h.AvgBuyPrice
		if entryPrice <= 0 {
			// Exchange lost the average cost; current price is the best
			// remaining estimate.
			p, err := b.data.CurrentPrice(ctx, market)
			if err != nil || p <= 0 {
				log.Printf("recovery: no usable price for %s, skipping", market)
				continue
			}
			entryPrice = p
			log.Printf("recovery: %s has no average cost, using market price %.2f", market, p)
		}

		pos := &Position{
			Market:     market,
			EntryPrice: entryPrice,
			Quantity:   h.Balance,
			OpenedAt:   time.Now(),
			Recovered:  true,
		}

		b.mu.Lock()
		b.positions[market] = pos
		b.watch.Admit(market, b.defaultOrigin)
		b.mu.Unlock()

		recovered++
		log.Printf("recovered position: %s qty %.8f avg %.2f", market, h.Balance, entryPrice)
		b.publish(events.EventPositionRecovered, events.PositionUpdate{
			Market: market, Side: "buy", Price: entryPrice, Quantity: h.Balance,
		})
	}

	if recovered > 0 {
		b.publishWatchlist()
	}
	log.Printf("position recovery complete: managing %d positions", len(b.positionMarkets()))
	return nil
}

// syncWithExchange drops tracked positions whose holdings vanished (manual
// sale or external liquidation). The bot did not choose those exits, so no
// ledger row is closed and no cooldown is armed.
func (b *Bot) syncWithExchange(ctx context.Context) {
	tracked := b.positionMarkets()
	if len(tracked) == 0 {
		return
	}

	holdings, err := b.data.Holdings(ctx)
	if err != nil {
		log.Printf("position sync failed: %v", err)
		return
	}
	held := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		if h.Balance > 0 {
			if m := b.marketFor(h.Currency); m != "" {
				held[m] = true
			}
		}
	}

	var removed []string
	b.mu.Lock()
	for _, m := range tracked {
		if held[m] {
			continue
		}
		if _, ok := b.positions[m]; !ok {
			continue
		}
		delete(b.positions, m)
		b.watch.Remove(m)
		removed = append(removed, m)
	}
	b.mu.Unlock()

	for _, m := range removed {
		log.Printf("position removed: %s no longer held on exchange", m)
		b.publish(events.EventPositionClosed, events.PositionUpdate{
			Market: m, Side: "sell", Reason: "external",
		})
	}
	if len(removed) > 0 {
		b.publishWatchlist()
	}
}

// marketFor maps an exchange currency back to a market code using the
// quote currency of the configured universe.
func (b *Bot) marketFor(currency string) string {
	if len(b.cfg.Markets) == 0 {
		return ""
	}
	quote := quoteCurrency(b.cfg.Markets[0])
	if quote == "" || currency == quote {
		return ""
	}
	return quote + "-" + currency
}
