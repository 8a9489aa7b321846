package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the trading bot.
type Config struct {
	Port string

	// Upbit
	UpbitAccessKey string
	UpbitSecretKey string
	UpbitBaseURL   string

	// Execution toggle: when false, orders are logged but not sent.
	ExecutionEnabled bool

	// Python prediction worker
	EnablePredictWorker bool
	PredictWorkerAddr   string

	// Database
	DBPath string

	// Auth
	JWTSecret        string
	OperatorPassword string

	// Trading parameters (trading.yaml, env-overridable where noted).
	Trading Trading
}

// Trading is the parameter profile loaded from trading.yaml.
type Trading struct {
	Markets             []string `yaml:"markets"`
	TradeAmount         float64  `yaml:"trade_amount"`
	TargetProfit        float64  `yaml:"target_profit"`
	StopLoss            float64  `yaml:"stop_loss"`
	RebuyGap            float64  `yaml:"rebuy_gap"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	RetrainThreshold    int      `yaml:"retrain_threshold"`
	MinOrderAmount      float64  `yaml:"min_order_amount"`
	TopN                int      `yaml:"top_n"`
	ScanOffset          int      `yaml:"scan_offset"`
	ScanWidth           int      `yaml:"scan_width"`
	TickIntervalSec     int      `yaml:"tick_interval_sec"`
	RefreshIntervalMin  int      `yaml:"refresh_interval_min"`
}

// Load reads environment variables (optionally via .env) and the trading
// profile into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		UpbitAccessKey:      os.Getenv("UPBIT_ACCESS_KEY"),
		UpbitSecretKey:      os.Getenv("UPBIT_SECRET_KEY"),
		UpbitBaseURL:        getEnv("UPBIT_BASE_URL", "https://api.upbit.com"),
		ExecutionEnabled:    getEnv("EXECUTION_ENABLED", "false") == "true",
		EnablePredictWorker: getEnv("ENABLE_PREDICT_WORKER", "false") == "true",
		PredictWorkerAddr:   getEnv("PREDICT_WORKER_ADDR", "localhost:50051"),
		DBPath:              getEnv("DB_PATH", "./data/trading.db"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret"),
		OperatorPassword:    getEnv("OPERATOR_PASSWORD", ""),
		Trading:             DefaultTrading(),
	}

	profile := getEnv("TRADING_PROFILE", "./trading.yaml")
	if err := cfg.Trading.loadFile(profile); err != nil {
		return nil, err
	}

	// Env overrides for the knobs operators tune most often.
	cfg.Trading.TradeAmount = getEnvFloat("TRADE_AMOUNT", cfg.Trading.TradeAmount)
	cfg.Trading.TargetProfit = getEnvFloat("TARGET_PROFIT", cfg.Trading.TargetProfit)
	cfg.Trading.StopLoss = getEnvFloat("STOP_LOSS", cfg.Trading.StopLoss)
	cfg.Trading.RebuyGap = getEnvFloat("REBUY_GAP", cfg.Trading.RebuyGap)
	cfg.Trading.RetrainThreshold = getEnvInt("RETRAIN_THRESHOLD", cfg.Trading.RetrainThreshold)

	if envMarkets := splitAndTrim(getEnv("MARKETS", "")); len(envMarkets) > 0 {
		cfg.Trading.Markets = envMarkets
	}
	if len(cfg.Trading.Markets) == 0 {
		return nil, fmt.Errorf("config: no markets configured")
	}
	return cfg, nil
}

// DefaultTrading returns the parameter profile used when trading.yaml is
// absent or leaves fields unset.
func DefaultTrading() Trading {
	return Trading{
		Markets:             []string{"KRW-BTC", "KRW-ETH", "KRW-XRP", "KRW-SOL", "KRW-DOGE"},
		TradeAmount:         10000,
		TargetProfit:        0.02,
		StopLoss:            0.02,
		RebuyGap:            0.015,
		ConfidenceThreshold: 0.7,
		RetrainThreshold:    10,
		MinOrderAmount:      5000,
		TopN:                5,
		ScanOffset:          0,
		ScanWidth:           30,
		TickIntervalSec:     10,
		RefreshIntervalMin:  5,
	}
}

// TickInterval returns the main loop cadence.
func (t Trading) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalSec) * time.Second
}

// RefreshInterval returns the periodic recommendation cadence.
func (t Trading) RefreshInterval() time.Duration {
	return time.Duration(t.RefreshIntervalMin) * time.Minute
}

func (t *Trading) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read trading profile: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse trading profile %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
