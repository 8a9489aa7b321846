package recommend

import (
	"context"
	"fmt"
	"log"
	"sort"

	"trading-bot/internal/features"
	"trading-bot/internal/market"
	"trading-bot/internal/predictor"
)

// candleCount is how much minute history each candidate is scored on.
const candleCount = 60

// Selector ranks a configured universe by 24h turnover, scans a fixed window
// of that ranking and scores the window's members. Batches are tagged with
// the scanned window so downstream absence tracking can tell which entries
// a batch is evidence about.
type Selector struct {
	universe []string
	offset   int
	width    int
	data     market.Data
	model    predictor.Predictor
}

// NewSelector builds a selector over the given universe.
func NewSelector(universe []string, offset, width int, data market.Data, model predictor.Predictor) *Selector {
	return &Selector{
		universe: append([]string(nil), universe...),
		offset:   offset,
		width:    width,
		data:     data,
		model:    model,
	}
}

// Origin returns the window this selector draws batches from.
func (s *Selector) Origin() Range {
	return Range{Start: s.offset, End: s.offset + s.width}
}

// TopN returns up to n scored candidates from the scan window, best first.
func (s *Selector) TopN(ctx context.Context, n int) ([]Candidate, Range, error) {
	origin := s.Origin()

	tickers, err := s.data.Tickers(ctx, s.universe)
	if err != nil {
		return nil, origin, fmt.Errorf("load tickers: %w", err)
	}
	sort.Slice(tickers, func(i, j int) bool {
		return tickers[i].AccTradePrice24h > tickers[j].AccTradePrice24h
	})

	start := s.offset
	if start > len(tickers) {
		start = len(tickers)
	}
	end := s.offset + s.width
	if end > len(tickers) {
		end = len(tickers)
	}
	window := tickers[start:end]

	var candidates []Candidate
	for i, tk := range window {
		candles, err := s.data.Candles(ctx, tk.Market, 1, candleCount)
		if err != nil {
			log.Printf("selector: candles %s: %v", tk.Market, err)
			continue
		}
		f := features.Extract(candles)
		if f == nil {
			continue
		}

		pred, err := s.model.Predict(ctx, f)
		if err != nil {
			log.Printf("selector: predict %s: %v", tk.Market, err)
			pred = predictor.Prediction{}
		}
		confidence := 0.0
		if pred.Direction == predictor.Up {
			confidence = pred.Confidence
		}

		// Liquidity rank decays down the window; momentum is the recent
		// move clamped to ±3%.
		volumeRank := 1.0 - float64(i)/float64(len(window))
		momentum := clamp(f["price_change_15m"]/0.03, -1, 1)

		candidates = append(candidates, Candidate{
			Market:     tk.Market,
			Score:      0.5*confidence + 0.3*volumeRank + 0.2*momentum,
			Confidence: pred.Confidence,
			Price:      tk.TradePrice,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, origin, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
