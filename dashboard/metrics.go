package dashboard

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks refresh and serving counters on a private registry, so
// tests and embedders never fight over the global one.
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	snapshotStale   prometheus.Gauge
	backoffSeconds  prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the dashboard metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_eye_refresh_total",
			Help: "Completed snapshot refreshes by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_eye_refresh_duration_seconds",
			Help:    "Snapshot build duration.",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_eye_snapshot_stale",
			Help: "1 when the published snapshot is a retained last known good.",
		}),
		backoffSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_eye_backoff_seconds",
			Help: "Current refresh backoff.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_eye_http_requests_total",
			Help: "Handled HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		m.refreshTotal,
		m.refreshDuration,
		m.snapshotStale,
		m.backoffSeconds,
		m.requestsTotal,
	)
	return m
}

// ObserveRefresh records one completed builder invocation.
func (m *Metrics) ObserveRefresh(d time.Duration, ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

// SetSnapshotState records the published snapshot's freshness.
func (m *Metrics) SetSnapshotState(stale bool, backoffSeconds int) {
	if stale {
		m.snapshotStale.Set(1)
	} else {
		m.snapshotStale.Set(0)
	}
	m.backoffSeconds.Set(float64(backoffSeconds))
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(route, status string) {
	m.requestsTotal.WithLabelValues(route, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
