// Package metrics exposes prometheus collectors for the execution pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the engine's collectors behind one registry so the engine
// stays embeddable without process-wide state.
type Metrics struct {
	Registry *prometheus.Registry

	QueueDepth    prometheus.GaugeFunc
	ActiveWorkers prometheus.Gauge
	Executions    *prometheus.CounterVec
	Duration      prometheus.Histogram
}

// New builds the collector set. queueSize is sampled on scrape.
func New(queueSize func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		QueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cxe_queue_depth",
			Help: "Number of submissions waiting in the queue.",
		}, func() float64 { return float64(queueSize()) }),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cxe_active_workers",
			Help: "Number of workers currently executing a submission.",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cxe_executions_total",
			Help: "Completed executions by outcome.",
		}, []string{"status"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cxe_execution_duration_seconds",
			Help:    "End-to-end execution duration per submission.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	reg.MustRegister(
		m.QueueDepth,
		m.ActiveWorkers,
		m.Executions,
		m.Duration,
		collectors.NewGoCollector(),
	)
	return m
}
