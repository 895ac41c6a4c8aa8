// Package metrics holds the Prometheus collectors of the service. Every
// method is safe on a nil *Collector, so callers that run without metrics
// pass nil instead of branching.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Import metrics
	ImportEntries   *prometheus.CounterVec
	ImportDocuments *prometheus.CounterVec

	// Storage health: 1 once the schema is ready, 0 when degraded
	StoreReady prometheus.Gauge
}

// NewCollector creates a collector on its own registry with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	importEntries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_entries_total",
			Help:      "Imported bookmark entries by outcome",
		},
		[]string{"outcome"},
	)

	importDocuments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_documents_total",
			Help:      "Import runs by result",
		},
		[]string{"result"},
	)

	storeReady := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_ready",
			Help:      "1 when the database schema is ready, 0 when degraded",
		},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		importEntries,
		importDocuments,
		storeReady,
	)

	return &Collector{
		registry:        registry,
		HTTPRequests:    httpRequests,
		HTTPDuration:    httpDuration,
		ImportEntries:   importEntries,
		ImportDocuments: importDocuments,
		StoreReady:      storeReady,
	}
}

// ObserveHTTP records one finished request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ImportEntry counts one import entry outcome.
func (c *Collector) ImportEntry(outcome string) {
	if c == nil {
		return
	}
	c.ImportEntries.WithLabelValues(outcome).Inc()
}

// ImportDocument counts one import run.
func (c *Collector) ImportDocument(result string) {
	if c == nil {
		return
	}
	c.ImportDocuments.WithLabelValues(result).Inc()
}

// SetStoreReady publishes the schema state.
func (c *Collector) SetStoreReady(ready bool) {
	if c == nil {
		return
	}
	if ready {
		c.StoreReady.Set(1)
	} else {
		c.StoreReady.Set(0)
	}
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
