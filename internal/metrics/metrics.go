// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_tracker"

var (
	// Pages by outcome: fetched, failed, empty.
	CatalogPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "crawler",
		Name:      "pages_total",
		Help:      "Catalog listing pages by outcome",
	}, []string{"category", "outcome"})

	// Variants by outcome: succeeded, decode_error, extract_error, store_error.
	Variants = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "crawler",
		Name:      "variants_total",
		Help:      "Variants processed by outcome",
	}, []string{"outcome"})

	ReconcileActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "actions_total",
		Help:      "History entries inserted or merged per series",
	}, []string{"series", "action"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "crawler",
		Name:      "run_duration_seconds",
		Help:      "Duration of one category batch",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"status"})

	ConsistencyChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consistency",
		Name:      "checks_total",
		Help:      "Consistency checks by result",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
