// Package metrics exposes Prometheus counters for watched probe runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the probe instrumentation behind its own registry.
type Metrics struct {
	registry *prometheus.Registry
	probes   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// New creates and registers the probe metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availprobe_probes_total",
			Help: "Probes issued, by scenario label and outcome.",
		}, []string{"label", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "availprobe_probe_duration_seconds",
			Help:    "Probe latency by scenario label.",
			Buckets: prometheus.DefBuckets,
		}, []string{"label"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availprobe_runs_total",
			Help: "Completed runs, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	m.registry.MustRegister(m.probes, m.latency, m.runs)
	return m
}

// ObserveProbe records one probe measurement.
func (m *Metrics) ObserveProbe(label string, elapsed time.Duration, ok bool) {
	m.probes.WithLabelValues(label, outcome(ok)).Inc()
	m.latency.WithLabelValues(label).Observe(elapsed.Seconds())
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(kind string, ok bool) {
	m.runs.WithLabelValues(kind, outcome(ok)).Inc()
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
