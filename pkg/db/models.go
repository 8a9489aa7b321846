package db

import (
	"time"
)

// Trade represents one row of the trade ledger. A trade is inserted when a
// position opens and updated in place when it closes.
type Trade struct {
	ID              int64              `json:"id"`
	Market          string             `json:"market"`
	EntryTime       time.Time          `json:"entry_time"`
	ExitTime        time.Time          `json:"exit_time"`
	EntryPrice      float64            `json:"entry_price"`
	ExitPrice       float64            `json:"exit_price"`
	Quantity        float64            `json:"quantity"`
	ProfitRate      float64            `json:"profit_rate"`
	ProfitAmount    float64            `json:"profit_amount"`
	Features        map[string]float64 `json:"features,omitempty"`
	ModelConfidence float64            `json:"model_confidence"`
	IsProfitable    bool               `json:"is_profitable"`
	ExitReason      string             `json:"exit_reason"`
	Status          string             `json:"status"` // "open" or "closed"
}

// LearningSample is one closed trade flattened into a training example.
type LearningSample struct {
	Features map[string]float64
	Label    int // 1 when the trade cleared fees, else 0
}

// Statistics aggregates the closed side of the ledger.
type Statistics struct {
	TotalTrades      int     `json:"total_trades"`
	ProfitableTrades int     `json:"profitable_trades"`
	WinRate          float64 `json:"win_rate"`
	AvgProfitRate    float64 `json:"avg_profit_rate"`
	TotalProfit      float64 `json:"total_profit"`
}

// ModelRecord is one row of the model_performance audit table.
type ModelRecord struct {
	TrainedAt    time.Time `json:"trained_at"`
	Accuracy     float64   `json:"accuracy"`
	SampleCount  int       `json:"sample_count"`
	ClosedTrades int       `json:"closed_trades"`
	ModelVersion string    `json:"model_version"`
}

// featureColumns is the fixed column order for the ten entry-time indicators.
var featureColumns = []string{
	"rsi", "macd", "macd_signal", "bb_position", "volume_ratio",
	"price_change_5m", "price_change_15m", "ema_9", "ema_21", "atr",
}
