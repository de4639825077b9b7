// Package metrics provides Prometheus instrumentation for PortfolioHub.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshResults counts per-symbol refresh outcomes, partitioned by feed and status.
	RefreshResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfoliohub_refresh_results_total",
		Help: "Per-symbol feed refresh outcomes",
	}, []string{"feed", "status"})

	// RefreshDuration tracks how long a whole refresh batch took.
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfoliohub_refresh_duration_seconds",
		Help:    "Feed refresh batch duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"feed"})

	// ProviderLatency tracks individual provider call latency.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfoliohub_provider_latency_seconds",
		Help:    "External provider call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})

	// LedgerMutations counts ledger mutations by operation and result.
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfoliohub_ledger_mutations_total",
		Help: "Position ledger mutations",
	}, []string{"op", "result"})

	// PositionsHeld tracks the number of open positions.
	PositionsHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portfoliohub_positions",
		Help: "Number of positions currently held",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfoliohub_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfoliohub_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveProvider records a provider call that started at start.
func ObserveProvider(feed string, start time.Time) {
	ProviderLatency.WithLabelValues(feed).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
