package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's Prometheus collectors. Each instance carries
// its own registry, exposed via Handler.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	VendorLookupsTotal *prometheus.CounterVec
	ImportsTotal       *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratelink_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cratelink_http_request_duration_seconds",
				Help:    "Time spent handling HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		VendorLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratelink_vendor_lookups_total",
				Help: "Total number of vendor catalog and marketplace lookups",
			},
			[]string{"vendor", "status"},
		),
		ImportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratelink_imports_total",
				Help: "Total number of playlist imports persisted",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratelink_rate_limited_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"rule"},
		),
	}

	metrics.registry.MustRegister(
		metrics.RequestsTotal,
		metrics.RequestDuration,
		metrics.VendorLookupsTotal,
		metrics.ImportsTotal,
		metrics.RateLimitedTotal,
	)

	return metrics
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordVendorLookup counts one vendor lookup outcome. It satisfies the
// enrichment pipeline's metrics recorder.
func (m *Metrics) RecordVendorLookup(vendor, status string) {
	m.VendorLookupsTotal.WithLabelValues(vendor, status).Inc()
}

func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) RecordImport(status string) {
	m.ImportsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRateLimited(rule string) {
	m.RateLimitedTotal.WithLabelValues(rule).Inc()
}
