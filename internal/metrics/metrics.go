// Package metrics exposes Prometheus metrics of the indexer and the server.
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
	// Index metrics
	FeaturesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobbox",
		Subsystem: "index",
		Name:      "features_total",
		Help:      "Total features extracted into indexes",
	}, []string{"dataset"})

	FeaturesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobbox",
		Subsystem: "index",
		Name:      "features_skipped_total",
		Help:      "Total malformed features skipped during extraction",
	}, []string{"dataset"})

	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geobbox",
		Subsystem: "index",
		Name:      "build_duration_seconds",
		Help:      "Duration of index builds",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"dataset"})

	IndexEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "geobbox",
		Subsystem: "index",
		Name:      "entries",
		Help:      "Entries of the currently loaded index",
	}, []string{"dataset"})

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobbox",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geobbox",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route"})

	SearchResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geobbox",
		Subsystem: "search",
		Name:      "results",
		Help:      "Features returned per search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"dataset"})
)

// ObserveRequest records one served request. Route must be a low-cardinality
// pattern, not the raw path.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus /metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
