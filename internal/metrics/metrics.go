// Package metrics exposes Prometheus collectors for sync cycles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "a0_launcher"

// Metrics groups the sync collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	bytesDownloaded prometheus.Counter
	lastSuccess     prometheus.Gauge
	contentVersion  *prometheus.GaugeVec
}

// New registers the sync collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Number of finished sync cycles by terminal state.",
		}, []string{"state"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of sync cycles.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes of content bundles downloaded.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that installed or confirmed content.",
		}),
		contentVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "info",
			Help:      "Installed content version, always 1.",
		}, []string{"version"}),
	}
	reg.MustRegister(m.cycles, m.cycleDuration, m.bytesDownloaded, m.lastSuccess, m.contentVersion)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(state).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// AddDownloaded adds n downloaded bytes.
func (m *Metrics) AddDownloaded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesDownloaded.Add(float64(n))
}

// MarkSuccess records the time of a successful cycle.
func (m *Metrics) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}

// SetContentVersion replaces the installed-version series.
func (m *Metrics) SetContentVersion(version string) {
	if m == nil {
		return
	}
	m.contentVersion.Reset()
	m.contentVersion.WithLabelValues(version).Set(1)
}
