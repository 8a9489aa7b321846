// Package db persists the trade ledger the learning loop feeds on.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("record not found")

// feeBuffer: a round trip costs roughly 0.1% in fees, so a close only counts
// as profitable above this rate.
const feeBuffer = 0.001

// Ledger provides trade persistence on top of the SQLite handle.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps the database handle.
func NewLedger(d *Database) *Ledger {
	return &Ledger{db: d.DB}
}

// RecordEntry inserts an open trade and returns its ledger id.
func (l *Ledger) RecordEntry(ctx context.Context, t Trade) (int64, error) {
	cols := []string{"market", "entry_price", "quantity", "model_confidence", "status"}
	args := []any{t.Market, t.EntryPrice, t.Quantity, t.ModelConfidence, "open"}
	for _, c := range featureColumns {
		cols = append(cols, c)
		args = append(args, t.Features[c])
	}
	query := fmt.Sprintf(
		"INSERT INTO trades (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert trade entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("trade entry id: %w", err)
	}
	return id, nil
}

// RecordExit closes an open trade in place. Profitability is fee-aware: the
// profit rate must clear the round-trip fee buffer to count as a win.
func (l *Ledger) RecordExit(ctx context.Context, id int64, exitPrice, profitRate, profitAmount float64, reason string) error {
	profitable := 0
	if profitRate > feeBuffer {
		profitable = 1
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE trades SET
			exit_time = CURRENT_TIMESTAMP,
			exit_price = ?,
			profit_rate = ?,
			profit_amount = ?,
			is_profitable = ?,
			exit_reason = ?,
			status = 'closed'
		WHERE id = ? AND status = 'open'
	`, exitPrice, profitRate, profitAmount, profitable, reason, id)
	if err != nil {
		return fmt.Errorf("record trade exit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenTradeCount returns how many ledger rows are still open. Drift from
// externally liquidated positions shows up here, so the status surface can
// expose it.
func (l *Ledger) OpenTradeCount(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = 'open'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open trades: %w", err)
	}
	return n, nil
}

// ClosedTradeCount returns how many trades have completed their round trip.
func (l *Ledger) ClosedTradeCount(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = 'closed'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count closed trades: %w", err)
	}
	return n, nil
}

// LearningData returns the most recent closed trades as labeled samples,
// oldest first so training sees them in chronological order.
func (l *Ledger) LearningData(ctx context.Context, limit int) ([]LearningSample, error) {
	query := fmt.Sprintf(`
		SELECT %s, is_profitable FROM (
			SELECT * FROM trades
			WHERE status = 'closed'
			ORDER BY exit_time DESC
			LIMIT ?
		) ORDER BY exit_time ASC
	`, strings.Join(featureColumns, ", "))

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query learning data: %w", err)
	}
	defer rows.Close()

	var samples []LearningSample
	for rows.Next() {
		vals := make([]sql.NullFloat64, len(featureColumns))
		var label sql.NullInt64
		dest := make([]any, 0, len(vals)+1)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &label)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan learning sample: %w", err)
		}

		s := LearningSample{Features: make(map[string]float64, len(featureColumns))}
		for i, c := range featureColumns {
			s.Features[c] = vals[i].Float64
		}
		if label.Int64 == 1 {
			s.Label = 1
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Statistics aggregates closed trades.
func (l *Ledger) Statistics(ctx context.Context) (Statistics, error) {
	var s Statistics
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(is_profitable), 0),
		       COALESCE(AVG(profit_rate), 0),
		       COALESCE(SUM(profit_amount), 0)
		FROM trades WHERE status = 'closed'
	`).Scan(&s.TotalTrades, &s.ProfitableTrades, &s.AvgProfitRate, &s.TotalProfit)
	if err != nil {
		return Statistics{}, fmt.Errorf("query statistics: %w", err)
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.ProfitableTrades) / float64(s.TotalTrades)
	}
	return s, nil
}

// RecentTrades returns the latest ledger rows, newest first.
func (l *Ledger) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	query := fmt.Sprintf(`
		SELECT id, market, entry_time, COALESCE(exit_time, entry_time),
		       entry_price, COALESCE(exit_price, 0), quantity,
		       COALESCE(profit_rate, 0), COALESCE(profit_amount, 0),
		       COALESCE(model_confidence, 0), COALESCE(is_profitable, 0),
		       COALESCE(exit_reason, ''), status, %s
		FROM trades
		ORDER BY id DESC
		LIMIT ?
	`, strings.Join(featureColumns, ", "))

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var (
			t          Trade
			profitable int
		)
		feats := make([]sql.NullFloat64, len(featureColumns))
		dest := []any{
			&t.ID, &t.Market, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.ProfitRate, &t.ProfitAmount,
			&t.ModelConfidence, &profitable, &t.ExitReason, &t.Status,
		}
		for i := range feats {
			dest = append(dest, &feats[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.IsProfitable = profitable == 1
		t.Features = make(map[string]float64, len(featureColumns))
		for i, c := range featureColumns {
			t.Features[c] = feats[i].Float64
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecordModelPerformance appends one training run to the audit table.
func (l *Ledger) RecordModelPerformance(ctx context.Context, r ModelRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO model_performance (accuracy, sample_count, closed_trades, model_version)
		VALUES (?, ?, ?, ?)
	`, r.Accuracy, r.SampleCount, r.ClosedTrades, r.ModelVersion)
	if err != nil {
		return fmt.Errorf("record model performance: %w", err)
	}
	return nil
}

// LastModelRecord returns the most recent training run.
func (l *Ledger) LastModelRecord(ctx context.Context) (ModelRecord, error) {
	var r ModelRecord
	err := l.db.QueryRowContext(ctx, `
		SELECT trained_at, accuracy, sample_count, closed_trades, COALESCE(model_version, '')
		FROM model_performance
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&r.TrainedAt, &r.Accuracy, &r.SampleCount, &r.ClosedTrades, &r.ModelVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelRecord{}, ErrNotFound
	}
	if err != nil {
		return ModelRecord{}, fmt.Errorf("query model record: %w", err)
	}
	return r, nil
}
