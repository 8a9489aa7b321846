package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trading.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutProfile(t *testing.T) {
	t.Setenv("TRADING_PROFILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultTrading()
	if cfg.Trading.TradeAmount != def.TradeAmount {
		t.Errorf("TradeAmount = %v, want default %v", cfg.Trading.TradeAmount, def.TradeAmount)
	}
	if len(cfg.Trading.Markets) == 0 {
		t.Error("default markets are empty")
	}
}

func TestLoadProfileAndEnvOverride(t *testing.T) {
	profile := writeProfile(t, `
markets: ["KRW-BTC", "KRW-ETH"]
trade_amount: 20000
target_profit: 0.03
`)
	t.Setenv("TRADING_PROFILE", profile)
	t.Setenv("TRADE_AMOUNT", "30000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Trading.Markets) != 2 {
		t.Fatalf("markets = %v", cfg.Trading.Markets)
	}
	if cfg.Trading.TargetProfit != 0.03 {
		t.Errorf("TargetProfit = %v, want 0.03 from profile", cfg.Trading.TargetProfit)
	}
	// Env wins over the profile.
	if cfg.Trading.TradeAmount != 30000 {
		t.Errorf("TradeAmount = %v, want 30000 from env", cfg.Trading.TradeAmount)
	}
	// Unset fields keep their defaults.
	if cfg.Trading.StopLoss != DefaultTrading().StopLoss {
		t.Errorf("StopLoss = %v, want default", cfg.Trading.StopLoss)
	}
}

func TestLoadRejectsEmptyMarkets(t *testing.T) {
	profile := writeProfile(t, "markets: []\n")
	t.Setenv("TRADING_PROFILE", profile)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty market list")
	}
}

func TestMarketsEnvOverride(t *testing.T) {
	t.Setenv("TRADING_PROFILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("MARKETS", "KRW-BTC, KRW-SOL ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"KRW-BTC", "KRW-SOL"}
	if len(cfg.Trading.Markets) != len(want) {
		t.Fatalf("markets = %v, want %v", cfg.Trading.Markets, want)
	}
	for i, m := range want {
		if cfg.Trading.Markets[i] != m {
			t.Fatalf("markets = %v, want %v", cfg.Trading.Markets, want)
		}
	}
}

func TestIntervals(t *testing.T) {
	tr := DefaultTrading()
	if tr.TickInterval().Seconds() != 10 {
		t.Errorf("tick interval = %v", tr.TickInterval())
	}
	if tr.RefreshInterval().Minutes() != 5 {
		t.Errorf("refresh interval = %v", tr.RefreshInterval())
	}
}
