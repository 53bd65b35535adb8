package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard service.
type Metrics struct {
	// Refresh loop
	RefreshTotal    *prometheus.CounterVec // labels: result=ok|error|skipped
	RefreshDur      prometheus.Histogram
	SnapshotDeals   prometheus.Gauge
	SnapshotTime    prometheus.Gauge // unix seconds of the last published snapshot
	MalformedDeals  prometheus.Counter
	UpstreamRelogin prometheus.Counter

	// Request path
	DashboardBuildDur prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec // labels: route, status
	ExportsTotal      *prometheus.CounterVec // labels: format

	// Circuit breakers, one series per breaker name
	BreakerState *prometheus.GaugeVec   // 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec // labels: name

	// Push channel
	WSClients       prometheus.Gauge
	EventsPublished *prometheus.CounterVec // labels: sink, result
	EventsBuffered  prometheus.Counter

	AlertsSent *prometheus.CounterVec // labels: result
}

// NewMetrics registers and returns all Prometheus metrics on reg.
// A nil reg means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_refresh_total",
			Help: "Snapshot refresh attempts by result",
		}, []string{"result"}),
		RefreshDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_refresh_duration_seconds",
			Help:    "Time to log in, fetch, validate and publish a snapshot",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		SnapshotDeals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_snapshot_deals",
			Help: "Active deals in the current snapshot",
		}),
		SnapshotTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_snapshot_timestamp_seconds",
			Help: "Unix time the current snapshot was fetched",
		}),
		MalformedDeals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_malformed_batches_total",
			Help: "Refreshes rejected because a deal failed validation",
		}),
		UpstreamRelogin: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_upstream_relogin_total",
			Help: "Re-logins after the marketplace rejected a token",
		}),

		DashboardBuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashboard_build_duration_seconds",
			Help:    "Time to aggregate, enrich and tabulate one dashboard view",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"route", "status"}),
		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_exports_total",
			Help: "Exports served by format",
		}, []string{"format"}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dashboard_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open",
		}, []string{"name"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_ws_clients",
			Help: "Connected websocket clients",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_events_published_total",
			Help: "Refresh events published by sink and result",
		}, []string{"sink", "result"}),
		EventsBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_events_buffered_total",
			Help: "Events buffered locally while the Redis circuit breaker was open",
		}),

		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_alerts_total",
			Help: "Alerts sent through the notification layer by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RefreshTotal,
		m.RefreshDur,
		m.SnapshotDeals,
		m.SnapshotTime,
		m.MalformedDeals,
		m.UpstreamRelogin,
		m.DashboardBuildDur,
		m.HTTPRequests,
		m.ExportsTotal,
		m.BreakerState,
		m.BreakerTrips,
		m.WSClients,
		m.EventsPublished,
		m.EventsBuffered,
		m.AlertsSent,
	)

	return m
}

// ObserveBreaker records a breaker transition. Its signature matches
// resilience.Breaker.OnStateChange once the states are converted to ints.
func (m *Metrics) ObserveBreaker(name string, to int) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
	if to == 1 {
		m.BreakerTrips.WithLabelValues(name).Inc()
	}
}

// Handler returns the exposition handler for g. A nil g means the default
// gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu  sync.RWMutex
	now func() time.Time

	UpstreamOK     bool      `json:"upstream_ok"`
	LastRefresh    time.Time `json:"last_refresh"`
	LastError      string    `json:"last_error,omitempty"`
	DealCount      int       `json:"deal_count"`
	BreakerState   string    `json:"breaker_state"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`

	// Liveness probe results
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`

	// MaxAge is how old the snapshot may get before the service reports
	// degraded. Zero disables the check.
	MaxAge time.Duration `json:"-"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		now:          time.Now,
		StartedAt:    time.Now(),
		BreakerState: "closed",
	}
}

// SetRefreshed records a successful refresh.
func (h *HealthStatus) SetRefreshed(at time.Time, deals int) {
	h.mu.Lock()
	h.UpstreamOK = true
	h.LastRefresh = at
	h.LastError = ""
	h.DealCount = deals
	h.mu.Unlock()
}

// SetRefreshFailed records a failed refresh; the previous snapshot stays.
func (h *HealthStatus) SetRefreshFailed(err error) {
	h.mu.Lock()
	h.UpstreamOK = false
	h.LastError = err.Error()
	h.mu.Unlock()
}

func (h *HealthStatus) SetBreakerState(s string) {
	h.mu.Lock()
	h.BreakerState = s
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings Redis every interval until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

// Report is the JSON body served by ServeHTTP.
type Report struct {
	Status         string    `json:"status"`
	SnapshotAge    string    `json:"snapshot_age,omitempty"`
	Uptime         string    `json:"uptime"`
	UpstreamOK     bool      `json:"upstream_ok"`
	LastRefresh    time.Time `json:"last_refresh"`
	LastError      string    `json:"last_error,omitempty"`
	DealCount      int       `json:"deal_count"`
	BreakerState   string    `json:"breaker_state"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
}

// Evaluate returns the overall status and HTTP code.
// healthy: a snapshot exists, is fresh, and the last refresh succeeded.
// degraded: a snapshot exists but is stale or the last refresh failed,
// or Redis is configured but unreachable.
// unhealthy: no snapshot has been published yet.
func (h *HealthStatus) Evaluate() (string, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.evaluate()
}

func (h *HealthStatus) evaluate() (string, int) {
	if h.LastRefresh.IsZero() {
		return "unhealthy", http.StatusServiceUnavailable
	}
	stale := h.MaxAge > 0 && h.now().Sub(h.LastRefresh) > h.MaxAge
	if !h.UpstreamOK || stale || (h.RedisEnabled && !h.RedisConnected) {
		return "degraded", http.StatusOK
	}
	return "healthy", http.StatusOK
}

// Snapshot returns the current report and its HTTP status code.
func (h *HealthStatus) Snapshot() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, code := h.evaluate()
	now := h.now()
	rep := Report{
		Status:         status,
		Uptime:         now.Sub(h.StartedAt).Round(time.Second).String(),
		UpstreamOK:     h.UpstreamOK,
		LastRefresh:    h.LastRefresh,
		LastError:      h.LastError,
		DealCount:      h.DealCount,
		BreakerState:   h.BreakerState,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		LastCheckAt:    h.LastCheckAt,
	}
	if !h.LastRefresh.IsZero() {
		rep.SnapshotAge = now.Sub(h.LastRefresh).Round(time.Second).String()
	}
	return rep, code
}

// ServeHTTP handles the health endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep, code := h.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(rep)
}
