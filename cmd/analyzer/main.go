// Command analyzer implements the cellwatch battery analysis engine.
//
// The analyzer runs a continuous analysis loop that:
//  1. Collects raw test records from a configured data source
//  2. Normalizes heterogeneous vendor columns and groups rows into cycles
//  3. Derives the SoH curve and assesses health, grade, and RUL
//  4. Flags per-cycle anomalies and fits forecast models over the curve
//  5. Stores analysis snapshots for clients to consume
//
// The analyzer serves an HTTP API on port 8082 (configurable) providing:
//   - GET /analysis/current?battery=<id> - Retrieve latest analysis snapshot
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	analyzer \
//	  -battery=pack-001 \
//	  -source=csv \
//	  -horizon=50 \
//	  -interval=5m
//
// Environment variables:
//
//	BATTERY       - Battery identifier (required)
//	SOURCE        - Data source kind: http or csv (required)
//	SOURCE_*      - Source-specific config (SOURCE_PATH, SOURCE_URL, SOURCE_ROWS_PATH, ...)
//	HORIZON       - Forecast horizon in cycles (default: 50)
//	EOL           - End-of-life SoH threshold percent (default: 80)
//	INTERVAL      - Analysis loop interval (default: 5m)
//	STORAGE       - Storage backend: memory or redis (default: memory)
//	REDIS_ADDR    - Redis server address (default: localhost:6379)
//	LOG_LEVEL     - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT    - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cellwatch/cellwatch/cmd/analyzer/config"
	"github.com/cellwatch/cellwatch/cmd/analyzer/logger"
	"github.com/cellwatch/cellwatch/cmd/analyzer/metrics"
	"github.com/cellwatch/cellwatch/cmd/analyzer/router"
	"github.com/cellwatch/cellwatch/pkg/anomaly"
	"github.com/cellwatch/cellwatch/pkg/httpx"
	"github.com/cellwatch/cellwatch/pkg/ingest"
	"github.com/cellwatch/cellwatch/pkg/normalize"
	"github.com/cellwatch/cellwatch/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	if err := config.Validate(cfg); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("starting cellwatch analyzer",
		"version", version,
		"battery", cfg.Battery,
		"source", cfg.Source,
	)

	cfg.SourceConfig["battery"] = cfg.Battery
	adapter, err := ingest.New(cfg.Source, cfg.SourceConfig)
	if err != nil {
		log.Error("failed to create source adapter", "error", err)
		os.Exit(1)
	}

	normalizer := normalize.New(normalize.DefaultSchema())

	detector := anomaly.NewDetector(anomaly.Config{
		VoltageHighRatio:     cfg.VoltageSevereRatio,
		VoltageMediumRatio:   cfg.VoltageModerateRatio,
		CapacityJumpFraction: cfg.CapacityJumpFraction,
		TempMediumC:          cfg.TempHighCelsius,
		TempHighC:            cfg.TempSevereCelsius,
	})

	store := newStore(cfg, log)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	a := New(
		cfg.Battery,
		adapter,
		normalizer,
		detector,
		store,
		cfg.Horizon,
		cfg.EOL,
		log,
		metrics.New(cfg.Battery),
	)

	staleAfter := 2 * cfg.Interval // Snapshot is stale if older than 2x the interval
	mux := router.SetupRoutes(store, staleAfter, log)
	httpServer := httpx.NewServer(cfg.Listen, mux, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
			log.Error("analysis loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

// newStore builds the configured storage backend. A Redis connection failure
// is fatal; the analyzer would otherwise silently lose snapshots.
func newStore(cfg *config.Config, log *slog.Logger) storage.Store {
	switch cfg.Storage {
	case "redis":
		store, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			log.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		log.Info("using redis storage", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return store
	default:
		log.Info("using in-memory storage")
		return storage.NewMemoryStore()
	}
}
