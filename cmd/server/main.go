// cmd/server serves the backtest API over HTTP and WebSocket, with
// Prometheus metrics and health on a separate listener.
//
// Usage:
//
//	PROVIDER=yahoo REDIS_ADDR=localhost:6379 go run ./cmd/server
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-backtestv1/config"
	"trading-backtestv1/internal/api"
	"trading-backtestv1/internal/app"
	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/logger"
	"trading-backtestv1/internal/metrics"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	logger.Init("backtest-server", logger.ParseLevel(cfg.LogLevel))

	m := metrics.NewMetrics()
	deps, err := app.Build(cfg, m)
	if err != nil {
		log.Fatalf("[server] provider setup failed: %v", err)
	}
	defer deps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := metrics.NewHealthStatus(deps.Provider.Name())
	health.StartLivenessChecker(ctx, deps.Redis, deps.SQLite, 15*time.Second)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	runner := backtest.NewRunner(deps.Provider, m)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewServer(runner, health, m, cfg.BatchWorkers)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("serving", "addr", cfg.HTTPAddr, "provider", deps.Provider.Name())
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[server] server error: %v", err)
		}
	}()

	<-sigCh
	slog.Info("shutting down")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	metricsSrv.Stop(shutdownCtx)
}
