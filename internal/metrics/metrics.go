// Package metrics exposes scan engine counters for Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buemura/surface/pkg/types"
)

const namespace = "surface"

// Metrics holds the engine collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scansStarted  prometheus.Counter
	scansFinished *prometheus.CounterVec
	scansRunning  prometheus.Gauge
	findings      *prometheus.CounterVec
	probeErrors   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	phaseFailures *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Scans that entered RUNNING.",
		}),
		scansFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_finished_total",
			Help:      "Scans that reached a terminal state.",
		}, []string{"status"}),
		scansRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scans_running",
			Help:      "Scans currently running.",
		}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings reported by probes.",
		}, []string{"probe", "severity"}),
		probeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_errors_total",
			Help:      "Probe runs that failed or panicked.",
		}, []string{"probe"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Wall time of one probe run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"probe"}),
		phaseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recon_phase_failures_total",
			Help:      "Reconnaissance phases that failed and fell back to defaults.",
		}, []string{"phase"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Progress events discarded because a subscriber was full.",
		}),
	}

	m.registry.MustRegister(
		m.scansStarted,
		m.scansFinished,
		m.scansRunning,
		m.findings,
		m.probeErrors,
		m.probeDuration,
		m.phaseFailures,
		m.eventsDropped,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ScanStarted() {
	if m == nil {
		return
	}
	m.scansStarted.Inc()
	m.scansRunning.Inc()
}

func (m *Metrics) ScanFinished(status types.ScanStatus) {
	if m == nil {
		return
	}
	m.scansRunning.Dec()
	m.scansFinished.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ProbeRun(probe string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.probeDuration.WithLabelValues(probe).Observe(elapsed.Seconds())
	if err != nil {
		m.probeErrors.WithLabelValues(probe).Inc()
	}
}

func (m *Metrics) Finding(f types.Finding) {
	if m == nil {
		return
	}
	m.findings.WithLabelValues(f.Probe, string(f.Severity)).Inc()
}

func (m *Metrics) PhaseFailed(phase string) {
	if m == nil {
		return
	}
	m.phaseFailures.WithLabelValues(phase).Inc()
}

func (m *Metrics) EventDropped(string) {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
