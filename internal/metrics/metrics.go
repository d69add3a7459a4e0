// Package metrics exposes kiosk sync and transport counters for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every kiosk metric
const DefaultNamespace = "kiosk"

// Metrics holds the kiosk collectors on a private registry.
//
// Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	salesUploaded   prometheus.Counter
	salesFailed     prometheus.Counter
	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	fiscalPrints    *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	online          prometheus.Gauge
}

// New creates and registers all collectors
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync pipeline runs by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	m.syncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of completed sync pipeline runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	m.salesUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_uploaded_total",
			Help:      "Queued sales acknowledged by the backend.",
		},
	)

	m.salesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_failed_total",
			Help:      "Queued sales rejected by the backend.",
		},
	)

	m.backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "HTTP exchanges with the backend. Status 0 means no response.",
		},
		[]string{"method", "status"},
	)

	m.backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of HTTP exchanges with the backend.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.fiscalPrints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fiscal_prints_total",
			Help:      "Fiscal receipt attempts by provider and result.",
		},
		[]string{"provider", "result"},
	)

	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sales_queue_depth",
			Help:      "Sales waiting for backend acknowledgement.",
		},
	)

	m.online = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_online",
			Help:      "1 when the last heartbeat reached the backend.",
		},
	)

	m.registry.MustRegister(
		m.syncRuns,
		m.syncDuration,
		m.salesUploaded,
		m.salesFailed,
		m.backendRequests,
		m.backendLatency,
		m.fiscalPrints,
		m.queueDepth,
		m.online,
	)

	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend HTTP exchange
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	m.backendRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.backendLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSync records a finished pipeline run. Skipped runs carry no duration.
func (m *Metrics) RecordSync(trigger, result string, duration time.Duration) {
	m.syncRuns.WithLabelValues(trigger, result).Inc()
	if duration > 0 {
		m.syncDuration.Observe(duration.Seconds())
	}
}

// RecordSalesUploaded counts acknowledged and rejected sales from one batch
func (m *Metrics) RecordSalesUploaded(synced, failed int) {
	m.salesUploaded.Add(float64(synced))
	m.salesFailed.Add(float64(failed))
}

// RecordFiscalPrint counts one fiscal receipt attempt
func (m *Metrics) RecordFiscalPrint(provider string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.fiscalPrints.WithLabelValues(provider, result).Inc()
}

// SetQueueDepth sets the number of unsynced sales
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// SetOnline sets the connectivity gauge
func (m *Metrics) SetOnline(online bool) {
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}
