// Package bot is the control loop that reconciles the position book, the
// live exchange balance and the ranked recommendation feed into one
// consistent watchlist and position set, then trades on it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"trading-bot/internal/cooldown"
	"trading-bot/internal/events"
	"trading-bot/internal/market"
	"trading-bot/internal/monitor"
	"trading-bot/internal/predictor"
	"trading-bot/internal/recommend"
	"trading-bot/internal/watchlist"
	"trading-bot/pkg/config"
	"trading-bot/pkg/db"
)

var (
	ErrAlreadyRunning = errors.New("bot is already running")
	ErrNotRunning     = errors.New("bot is not running")
)

// Recommender produces ranked candidate batches tagged with their origin
// range.
type Recommender interface {
	TopN(ctx context.Context, n int) ([]recommend.Candidate, recommend.Range, error)
}

// Ledger is the durable trade store the loop records into and learns from.
type Ledger interface {
	RecordEntry(ctx context.Context, t db.Trade) (int64, error)
	RecordExit(ctx context.Context, id int64, exitPrice, profitRate, profitAmount float64, reason string) error
	ClosedTradeCount(ctx context.Context) (int, error)
	LearningData(ctx context.Context, limit int) ([]db.LearningSample, error)
	Statistics(ctx context.Context) (db.Statistics, error)
	RecordModelPerformance(ctx context.Context, r db.ModelRecord) error
}

// Position is one held instrument. TradeID is zero for positions recovered
// from the exchange, which have no matching ledger row.
type Position struct {
	Market     string
	TradeID    int64
	EntryPrice float64
	Quantity   float64
	OpenedAt   time.Time
	Confidence float64
	Recovered  bool
}

// Bot owns the shared trading state and the background activities that
// mutate it. One mutex covers the watchlist, the position table and the
// cooldown table: any transition spanning more than one of them happens
// under a single lock hold. Foreign calls (market data, predictor, ledger)
// are never made while holding the lock.
type Bot struct {
	cfg     config.Trading
	execute bool

	data   market.Data
	model  predictor.Predictor
	rec    Recommender
	ledger Ledger
	bus    *events.Bus
	mon    *monitor.SystemMetrics

	mu            sync.Mutex
	running       bool
	refreshing    bool
	positions     map[string]*Position
	watch         *watchlist.Table
	cool          *cooldown.Table
	lastBatch     []recommend.Candidate
	lastBatchAt   time.Time
	sessionTrades int
	sessionWins   int

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// defaultOrigin stamps watchlist entries admitted outside a batch
	// (config seed, recovery, cooldown release, manual toggle).
	defaultOrigin recommend.Range
}

// New wires a bot. When execute is false, orders are logged and skipped,
// everything else runs normally.
func New(cfg config.Trading, execute bool, data market.Data, model predictor.Predictor, rec Recommender, ledger Ledger, bus *events.Bus, mon *monitor.SystemMetrics) *Bot {
	return &Bot{
		cfg:       cfg,
		execute:   execute,
		data:      data,
		model:     model,
		rec:       rec,
		ledger:    ledger,
		bus:       bus,
		mon:       mon,
		positions: make(map[string]*Position),
		watch:     watchlist.NewTable(),
		cool:      cooldown.NewTable(cfg.RebuyGap),
		defaultOrigin: recommend.Range{
			Start: cfg.ScanOffset,
			End:   cfg.ScanOffset + cfg.ScanWidth,
		},
	}
}

// Start brings the bot up: cold-start training if the model is blank,
// position recovery, watchlist seeding, then the background loops.
func (b *Bot) Start() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.running = true
	b.sessionTrades = 0
	b.sessionWins = 0
	ctx, cancel := context.WithCancel(context.Background())
	b.runCtx = ctx
	b.cancel = cancel
	b.mu.Unlock()

	b.coldStartTraining(ctx)

	if err := b.RecoverPositions(ctx); err != nil {
		log.Printf("position recovery failed: %v", err)
	}
	b.seedWatchlist()

	b.wg.Add(2)
	go b.tickLoop(ctx)
	go b.refreshLoop(ctx)

	log.Printf("bot started: %d markets seeded, tick %s, refresh %s",
		len(b.cfg.Markets), b.cfg.TickInterval(), b.cfg.RefreshInterval())
	return nil
}

// Stop signals all activities and waits for them, bounded by ctx, so a
// half-applied transition is never abandoned mid-tick.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrNotRunning
	}
	b.running = false
	cancel := b.cancel
	b.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("bot stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bot stop: %w", ctx.Err())
	}
}

// Running reports whether the loops are active.
func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// seedWatchlist admits the configured markets so the first ticks have
// something to evaluate before the first recommendation batch lands.
func (b *Bot) seedWatchlist() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.cfg.Markets {
		b.watch.Admit(m, b.defaultOrigin)
	}
}

func (b *Bot) tickLoop(ctx context.Context) {
	defer b.wg.Done()

	// A plain sequential loop keeps ticks single-flight: a slow tick
	// coalesces the ticker's backlog instead of overlapping with itself.
	ticker := time.NewTicker(b.cfg.TickInterval())
	defer ticker.Stop()

	b.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick runs one pass of the main loop: drift sync first (exchange truth),
// then cooldown releases, then exits, then entries. A position closed in
// this pass leaves the watchlist before entry evaluation, so it can never
// be re-opened in the same pass.
func (b *Bot) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	timer := monitor.NewTimer(b.tickHistogram())

	b.syncWithExchange(ctx)
	b.releaseCooldowns(ctx)

	for _, m := range b.positionMarkets() {
		if ctx.Err() != nil {
			return
		}
		b.evaluateExit(ctx, m)
	}
	for _, m := range b.entryCandidates() {
		if ctx.Err() != nil {
			return
		}
		b.evaluateEntry(ctx, m)
	}

	timer.Stop()
	if b.mon != nil {
		b.mon.IncrementTicks()
	}
}

func (b *Bot) tickHistogram() *monitor.LatencyHistogram {
	if b.mon == nil {
		return nil
	}
	return b.mon.TickLatency
}

// positionMarkets snapshots the markets with open positions.
func (b *Bot) positionMarkets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.positions))
	for m := range b.positions {
		out = append(out, m)
	}
	return out
}

// entryCandidates snapshots watchlisted markets without an open position.
// Cooldown-gated markets are not watchlisted, so they never appear here.
func (b *Bot) entryCandidates() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.watch.Markets() {
		if _, held := b.positions[m]; !held {
			out = append(out, m)
		}
	}
	return out
}

// releaseCooldowns re-admits markets whose directional release condition
// has been met, so ordinary entry evaluation resumes this same pass.
func (b *Bot) releaseCooldowns(ctx context.Context) {
	b.mu.Lock()
	armed := b.cool.Entries()
	b.mu.Unlock()

	for _, e := range armed {
		price, err := b.data.CurrentPrice(ctx, e.Market)
		if err != nil {
			log.Printf("cooldown check %s: %v", e.Market, err)
			continue
		}

		b.mu.Lock()
		released := b.cool.Allow(e.Market, price)
		if released {
			b.watch.Admit(e.Market, b.defaultOrigin)
		}
		b.mu.Unlock()

		if released {
			log.Printf("cooldown released: %s at %.2f (exit was %.2f, %s)",
				e.Market, price, e.ExitPrice, e.Reason)
			b.publish(events.EventCooldownReleased, events.PriceTick{
				Market: e.Market, Price: price, Time: time.Now(),
			})
			b.publishWatchlist()
		}
	}
}

func (b *Bot) refreshLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.refresh(ctx)
		}
	}
}

// RefreshAsync schedules an on-demand recommendation refresh off the
// caller's path. Overlapping requests coalesce: it returns false when a
// refresh is already in flight or the bot is stopped.
func (b *Bot) RefreshAsync() bool {
	b.mu.Lock()
	if !b.running || b.refreshing {
		b.mu.Unlock()
		return false
	}
	b.refreshing = true
	ctx := b.runCtx
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			b.mu.Lock()
			b.refreshing = false
			b.mu.Unlock()
		}()
		b.doRefresh(ctx)
	}()
	return true
}

// refresh is the periodic entry point; it shares the single-flight flag
// with RefreshAsync so the two schedules never run the recommender twice
// concurrently.
func (b *Bot) refresh(ctx context.Context) {
	b.mu.Lock()
	if b.refreshing {
		b.mu.Unlock()
		return
	}
	b.refreshing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.refreshing = false
		b.mu.Unlock()
	}()
	b.doRefresh(ctx)
}

// doRefresh runs one recommender pass and reconciles the watchlist.
// The caller must hold the refreshing flag.
func (b *Bot) doRefresh(ctx context.Context) {
	candidates, origin, err := b.rec.TopN(ctx, b.cfg.TopN)
	if err != nil {
		// No batch means no absence evidence; counters stay untouched.
		log.Printf("recommendation refresh failed: %v", err)
		return
	}

	batch := make([]string, len(candidates))
	for i, c := range candidates {
		batch[i] = c.Market
	}

	b.mu.Lock()
	evicted := b.watch.Apply(batch, origin, func(m string) bool {
		_, held := b.positions[m]
		return held
	})
	b.lastBatch = candidates
	b.lastBatchAt = time.Now()
	b.mu.Unlock()

	if len(candidates) > 0 {
		top := candidates[0]
		if b.cfg.TradeAmount < b.cfg.MinOrderAmount {
			log.Printf("trade amount %.0f below exchange minimum %.0f; %s admitted for tracking only",
				b.cfg.TradeAmount, b.cfg.MinOrderAmount, top.Market)
		} else {
			log.Printf("top recommendation: %s (score %.2f, confidence %.2f)",
				top.Market, top.Score, top.Confidence)
		}
	}
	for _, m := range evicted {
		log.Printf("watchlist evicted: %s (missed two batches from range [%d,%d))",
			m, origin.Start, origin.End)
	}

	b.publish(events.EventRecommendationsNew, candidates)
	b.publishWatchlist()
}

func (b *Bot) publish(e events.Event, payload any) {
	if b.bus != nil {
		b.bus.Publish(e, payload)
	}
}

func (b *Bot) publishWatchlist() {
	b.mu.Lock()
	markets := b.watch.Markets()
	b.mu.Unlock()
	b.publish(events.EventWatchlistChanged, events.WatchlistUpdate{Markets: markets})
}

// baseCurrency extracts the traded asset from a market code ("KRW-BTC"
// holds "BTC").
func baseCurrency(market string) string {
	if i := strings.IndexByte(market, '-'); i >= 0 {
		return market[i+1:]
	}
	return market
}

// quoteCurrency extracts the pricing currency from a market code.
func quoteCurrency(market string) string {
	if i := strings.IndexByte(market, '-'); i >= 0 {
		return market[:i]
	}
	return ""
}
