// Package api provides the HTTP and WebSocket API for running backtests.
package api

import (
	"net/http"

	"trading-backtestv1/internal/backtest"
	"trading-backtestv1/internal/metrics"
	"trading-backtestv1/internal/ringbuf"
)

const recentRuns = 64

// Server holds the dependencies shared by every handler.
type Server struct {
	runner  *backtest.Runner
	health  *metrics.HealthStatus
	metrics *metrics.Metrics
	workers int
	recent  *ringbuf.Ring[*backtest.Report]
}

// NewServer creates the API server. health and m may be nil.
func NewServer(runner *backtest.Runner, health *metrics.HealthStatus, m *metrics.Metrics, workers int) *Server {
	if workers <= 0 {
		workers = 1
	}
	return &Server{
		runner:  runner,
		health:  health,
		metrics: m,
		workers: workers,
		recent:  ringbuf.New[*backtest.Report](recentRuns),
	}
}

// NewRouter sets up HTTP routes for the API server.
//
//	GET  /api/v1/health
//	POST /api/v1/backtest            (?format=markdown for a text report)
//	POST /api/v1/backtest/batch
//	GET  /api/v1/runs                (summaries of recent reports)
//	GET  /api/v1/runs/{id}           (one recent report by run id)
//	WS   /api/v1/stream              (row-by-row result stream)
func NewRouter(s *Server) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if s.health != nil {
			s.health.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("/api/v1/backtest/batch", s.handleBatch)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	return mux
}
