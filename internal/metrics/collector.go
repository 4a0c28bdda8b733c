// Package metrics exposes pipeline counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/tempingest/internal/ingest"
)

const namespace = "tempingest"

// Collector records file outcomes and directory passes.
type Collector struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	rows         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	fileDuration prometheus.Histogram
	passDuration prometheus.Histogram
	lastPass     prometheus.Gauge
}

// NewCollector builds a collector with Go runtime and process metrics included.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed, by terminal state.",
		}, []string{"state"}),

		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows handled by successful runs, by kind.",
		}, []string{"kind"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed or rejected files, by reason.",
		}, []string{"reason"}),

		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time to take one file to a terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),

		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Time to process one landing directory pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time the last directory pass finished.",
		}),
	}

	registry.MustRegister(
		c.files, c.rows, c.failures, c.fileDuration, c.passDuration, c.lastPass,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveOutcome implements ingest.Observer.
func (c *Collector) ObserveOutcome(o ingest.Outcome) {
	c.files.WithLabelValues(string(o.State)).Inc()
	c.fileDuration.Observe(o.Duration.Seconds())

	if o.Reason != "" {
		c.failures.WithLabelValues(string(o.Reason)).Inc()
	}
	if o.State == ingest.StateSuccess {
		c.rows.WithLabelValues("staged").Add(float64(o.Counts.Staged))
		c.rows.WithLabelValues("valid").Add(float64(o.Counts.Valid))
		c.rows.WithLabelValues("rejected").Add(float64(o.Counts.Rejected))
	}
}

// ObservePass records a finished directory pass.
func (c *Collector) ObservePass(d time.Duration, finished time.Time) {
	c.passDuration.Observe(d.Seconds())
	c.lastPass.Set(float64(finished.Unix()))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
