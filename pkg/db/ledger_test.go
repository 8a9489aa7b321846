package db

import (
	"context"
	"testing"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return NewLedger(database)
}

func TestLedgerRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.RecordEntry(ctx, Trade{
		Market:          "KRW-BTC",
		EntryPrice:      100,
		Quantity:        0.1,
		ModelConfidence: 0.8,
		Features:        map[string]float64{"rsi": 28.5, "bb_position": 0.1},
	})
	if err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}

	if n, err := l.OpenTradeCount(ctx); err != nil || n != 1 {
		t.Fatalf("OpenTradeCount = %d (%v), want 1", n, err)
	}

	if err := l.RecordExit(ctx, id, 102, 0.02, 200, "profit"); err != nil {
		t.Fatalf("RecordExit: %v", err)
	}

	if n, err := l.OpenTradeCount(ctx); err != nil || n != 0 {
		t.Fatalf("OpenTradeCount after close = %d (%v), want 0", n, err)
	}

	// Closing twice must not match the open-row guard.
	if err := l.RecordExit(ctx, id, 102, 0.02, 200, "profit"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double close, got %v", err)
	}

	n, err := l.ClosedTradeCount(ctx)
	if err != nil {
		t.Fatalf("ClosedTradeCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 closed trade, got %d", n)
	}
}

func TestLedgerFeeAwareProfitability(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		profitRate float64
		wantWin    bool
	}{
		{"clears fee buffer", 0.02, true},
		{"inside fee buffer", 0.0005, false},
		{"exactly at buffer", 0.001, false},
		{"loss", -0.02, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := l.RecordEntry(ctx, Trade{Market: "KRW-BTC", EntryPrice: 100, Quantity: 1})
			if err != nil {
				t.Fatalf("RecordEntry: %v", err)
			}
			if err := l.RecordExit(ctx, id, 100*(1+tc.profitRate), tc.profitRate, 0, "profit"); err != nil {
				t.Fatalf("RecordExit: %v", err)
			}

			trades, err := l.RecentTrades(ctx, 1)
			if err != nil {
				t.Fatalf("RecentTrades: %v", err)
			}
			if len(trades) != 1 {
				t.Fatalf("expected 1 trade, got %d", len(trades))
			}
			if trades[0].IsProfitable != tc.wantWin {
				t.Errorf("profit_rate %v: IsProfitable = %v, want %v", tc.profitRate, trades[0].IsProfitable, tc.wantWin)
			}
		})
	}
}

func TestLedgerLearningDataAndStatistics(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Two wins, one loss.
	for i, rate := range []float64{0.02, 0.03, -0.02} {
		id, err := l.RecordEntry(ctx, Trade{
			Market:     "KRW-BTC",
			EntryPrice: 100,
			Quantity:   1,
			Features:   map[string]float64{"rsi": float64(20 + i)},
		})
		if err != nil {
			t.Fatalf("RecordEntry: %v", err)
		}
		if err := l.RecordExit(ctx, id, 100*(1+rate), rate, rate*100, "profit"); err != nil {
			t.Fatalf("RecordExit: %v", err)
		}
	}
	// One still-open trade must not leak into learning data.
	if _, err := l.RecordEntry(ctx, Trade{Market: "KRW-ETH", EntryPrice: 50, Quantity: 1}); err != nil {
		t.Fatalf("RecordEntry open: %v", err)
	}

	samples, err := l.LearningData(ctx, 100)
	if err != nil {
		t.Fatalf("LearningData: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	wins := 0
	for _, s := range samples {
		if len(s.Features) == 0 {
			t.Fatalf("sample missing features")
		}
		wins += s.Label
	}
	if wins != 2 {
		t.Errorf("expected 2 positive labels, got %d", wins)
	}

	stats, err := l.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.TotalTrades != 3 || stats.ProfitableTrades != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got, want := stats.WinRate, 2.0/3.0; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("WinRate = %v, want %v", got, want)
	}
}

func TestLedgerModelPerformance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.LastModelRecord(ctx); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound before training, got %v", err)
	}

	rec := ModelRecord{Accuracy: 0.75, SampleCount: 40, ClosedTrades: 40, ModelVersion: "local-v1"}
	if err := l.RecordModelPerformance(ctx, rec); err != nil {
		t.Fatalf("RecordModelPerformance: %v", err)
	}

	got, err := l.LastModelRecord(ctx)
	if err != nil {
		t.Fatalf("LastModelRecord: %v", err)
	}
	if got.Accuracy != rec.Accuracy || got.SampleCount != rec.SampleCount {
		t.Errorf("LastModelRecord = %+v, want %+v", got, rec)
	}
}
