// Package metrics provides Prometheus instrumentation for chainradar.
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
	// TicksTotal counts scheduler ticks, partitioned by outcome.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainradar_scheduler_ticks_total",
		Help: "Total alert evaluation ticks",
	}, []string{"outcome"})

	// AlertsEvaluated counts alert evaluations, partitioned by result.
	AlertsEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainradar_alerts_evaluated_total",
		Help: "Alert evaluations per tick loop",
	}, []string{"result"})

	// NotificationsTotal counts dispatch attempts by outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainradar_notifications_total",
		Help: "Notification dispatch attempts",
	}, []string{"outcome"})

	// ProviderErrors counts upstream provider failures by source.
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainradar_provider_errors_total",
		Help: "Upstream provider failures",
	}, []string{"source"})

	// PriceCacheLookups counts price cache hits and misses.
	PriceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainradar_price_cache_lookups_total",
		Help: "Price cache lookups",
	}, []string{"result"})

	// BalanceFetchDuration tracks balance adapter latency per chain.
	BalanceFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainradar_balance_fetch_duration_seconds",
		Help:    "Balance adapter call duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"chain"})

	// HTTPRequestsTotal counts API requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainradar_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks API request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainradar_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics around an HTTP handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
