package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	// Registry owns every collector below and backs the /metrics endpoint.
	Registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// NewMetrics creates a private registry so repeated construction in tests never collides.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldops_http_requests_total",
				Help: "HTTP requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fieldops_http_request_duration_seconds",
				Help:    "HTTP request latency by route and method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		errorCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldops_domain_errors_total",
				Help: "Errors rendered to clients by error code.",
			},
			[]string{"route", "method", "code"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldops_activity_notifications_total",
				Help: "Activity notifications by transport and outcome.",
			},
			[]string{"transport", "outcome"},
		),
	}
}

// RecordRequest counts a finished request and observes its latency.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response by code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(route, method, code).Inc()
}

// NotificationPublished counts a notification handed to transport.
func (m *Metrics) NotificationPublished(transport string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(transport, "published").Inc()
}

// NotificationDropped counts a notification that could not be delivered.
func (m *Metrics) NotificationDropped(transport string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(transport, "dropped").Inc()
}
