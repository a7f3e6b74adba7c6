package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backtest engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: status=ok|no_data|invalid|error
	RunDur         prometheus.Histogram
	BarsProcessed  prometheus.Counter
	ResultsTotal   *prometheus.CounterVec // labels: status=ok|insufficient_history
	TradesTotal    *prometheus.CounterVec // labels: reason
	ProviderFetch  *prometheus.HistogramVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	BreakerState   prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips   prometheus.Counter
	ActiveRuns     prometheus.Gauge
	StreamedFrames prometheus.Counter
}

// NewMetrics registers all metrics on the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs by final status",
		}, []string{"status"}),
		RunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Wall time of a full backtest run including price fetch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Daily bars fed through the indicator engine",
		}),
		ResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_strategy_results_total",
			Help: "Per-strategy results by status",
		}, []string{"status"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Simulated trades by exit reason",
		}, []string{"reason"}),
		ProviderFetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_provider_fetch_duration_seconds",
			Help:    "Price provider fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bar_cache_hits_total",
			Help: "Bar series served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bar_cache_misses_total",
			Help: "Bar series fetched upstream after a cache miss",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_active_runs",
			Help: "Backtest runs currently in progress",
		}),
		StreamedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_ws_frames_total",
			Help: "WebSocket frames written to stream clients",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDur,
		m.BarsProcessed,
		m.ResultsTotal,
		m.TradesTotal,
		m.ProviderFetch,
		m.CacheHits,
		m.CacheMisses,
		m.BreakerState,
		m.BreakerTrips,
		m.ActiveRuns,
		m.StreamedFrames,
	)

	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(status string, dur time.Duration, bars int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDur.Observe(dur.Seconds())
	m.BarsProcessed.Add(float64(bars))
}

// ObserveResult records one per-strategy result and its trades by exit reason.
func (m *Metrics) ObserveResult(status string, exitReasons []string) {
	if m == nil {
		return
	}
	m.ResultsTotal.WithLabelValues(status).Inc()
	for _, r := range exitReasons {
		m.TradesTotal.WithLabelValues(r).Inc()
	}
}

// ObserveFetch records a provider fetch latency.
func (m *Metrics) ObserveFetch(provider string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ProviderFetch.WithLabelValues(provider).Observe(dur.Seconds())
}

// CacheHit counts a cache hit (hit=true) or miss.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// BreakerChanged records a circuit breaker transition to state (0/1/2).
func (m *Metrics) BreakerChanged(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
	if state == 1 {
		m.BreakerTrips.Inc()
	}
}

// RunStarted increments the in-flight gauge and returns its decrement.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveRuns.Inc()
	return m.ActiveRuns.Dec
}

// FrameSent counts one streamed WebSocket frame.
func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.StreamedFrames.Inc()
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Provider       string    `json:"provider"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastRunAt      time.Time `json:"last_run_at"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(provider string) *HealthStatus {
	return &HealthStatus{
		Provider:  provider,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastRun(t time.Time) {
	h.mu.Lock()
	h.LastRunAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records connectivity and latency.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = latency
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the SQLite handle and records health and latency.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = latency
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker probes the configured backends every interval until
// ctx is cancelled. Either handle may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if rdb != nil {
				h.CheckRedis(probeCtx, rdb)
			}
			if sqlDB != nil {
				h.CheckSQLite(probeCtx, sqlDB)
			}
			cancel()

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Healthy reports whether every enabled backend passed its last probe.
func (h *HealthStatus) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.RedisEnabled && !h.RedisConnected {
		return false
	}
	if h.SQLiteEnabled && !h.SQLiteOK {
		return false
	}
	return true
}

func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	healthy := h.Healthy()

	h.mu.RLock()
	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		Provider        string  `json:"provider"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastRunAt       string  `json:"last_run_at,omitempty"`
	}{
		Status:          "ok",
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Provider:        h.Provider,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}
	if !h.LastRunAt.IsZero() {
		status.LastRunAt = h.LastRunAt.Format(time.RFC3339)
	}
	h.mu.RUnlock()

	httpCode := http.StatusOK
	if !healthy {
		status.Status = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
