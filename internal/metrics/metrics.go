package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the Prometheus collectors for the club site service.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	admissionTotal  *prometheus.CounterVec
	conflictRetries prometheus.Counter
}

// New creates and registers the service collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubsite",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Count of processed HTTP requests",
	}, []string{"method", "route", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clubsite",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Latency distribution of HTTP handlers",
		Buckets:   histogramBuckets,
	}, []string{"method", "route", "status"})

	m.admissionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clubsite",
		Subsystem: "booking",
		Name:      "admission_results_total",
		Help:      "Number of appointment admission outcomes by reason",
	}, []string{"outcome"})

	m.conflictRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "clubsite",
		Subsystem: "booking",
		Name:      "version_conflict_retries_total",
		Help:      "Number of commit retries triggered by stale site versions",
	})

	m.registry.MustRegister(m.requestTotal, m.requestDuration, m.admissionTotal, m.conflictRetries)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}

// RecordAdmission records one admission decision. Accepted requests use the
// outcome "accepted"; rejections use their reason code.
func (m *Metrics) RecordAdmission(outcome string) {
	m.admissionTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordConflictRetry records one reload-and-revalidate cycle after a stale
// version commit.
func (m *Metrics) RecordConflictRetry() {
	m.conflictRetries.Inc()
}
