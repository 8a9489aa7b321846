package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trading-bot/internal/api"
	"trading-bot/internal/bot"
	"trading-bot/internal/events"
	"trading-bot/internal/market"
	"trading-bot/internal/monitor"
	"trading-bot/internal/predictor"
	"trading-bot/internal/recommend"
	"trading-bot/pkg/config"
	"trading-bot/pkg/db"
	"trading-bot/pkg/instance"
	"trading-bot/pkg/market/upbit"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if id, err := instance.ID(); err == nil {
		log.Printf("instance %s starting (version %s)", id[:12], version)
	} else {
		log.Printf("instance id unavailable: %v", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create data dir: %v", err)
		}
	}
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	ledger := db.NewLedger(database)

	// Without exchange keys there is nothing real to trade against; fall
	// back to the in-memory mock so the UI and loops still come up.
	var data market.Data
	exchangeName := "upbit"
	if cfg.UpbitAccessKey != "" && cfg.UpbitSecretKey != "" {
		data = upbit.NewClient(cfg.UpbitAccessKey, cfg.UpbitSecretKey, cfg.UpbitBaseURL)
	} else {
		log.Println("no exchange keys configured, using mock market data")
		data = market.NewMock()
		exchangeName = "mock"
	}

	execute := cfg.ExecutionEnabled
	if !execute {
		log.Println("execution disabled: orders will be logged, not sent")
	}

	var model predictor.Predictor
	local := predictor.NewLocal()
	if cfg.EnablePredictWorker {
		worker, err := predictor.NewWorker(cfg.PredictWorkerAddr, local)
		if err != nil {
			log.Printf("prediction worker unavailable (%v), using local model", err)
			model = local
		} else {
			defer worker.Close()
			model = worker
			log.Printf("prediction worker connected at %s", cfg.PredictWorkerAddr)
		}
	} else {
		model = local
	}

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	selector := recommend.NewSelector(cfg.Trading.Markets, cfg.Trading.ScanOffset, cfg.Trading.ScanWidth, data, model)

	trader := bot.New(cfg.Trading, execute, data, model, selector, ledger, bus, metrics)
	if err := trader.Start(); err != nil {
		log.Fatalf("start bot: %v", err)
	}

	instanceID, _ := instance.ID()
	server := api.NewServer(trader, ledger, bus, metrics,
		api.AuthConfig{JWTSecret: cfg.JWTSecret, OperatorPassword: cfg.OperatorPassword},
		api.SystemMeta{
			Execute:    execute,
			Exchange:   exchangeName,
			Markets:    cfg.Trading.Markets,
			InstanceID: instanceID,
			Version:    version,
		})

	go func() {
		addr := ":" + cfg.Port
		log.Printf("http server listening on %s", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := trader.Stop(ctx); err != nil {
		log.Printf("bot shutdown: %v", err)
	}
	log.Println("goodbye")
}
