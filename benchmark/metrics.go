package benchmark

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports benchmark progress to Prometheus
type Metrics struct {
	registry *prometheus.Registry

	iterations    prometheus.Counter
	failures      prometheus.Counter
	latency       prometheus.Histogram
	requestCharge prometheus.Histogram
	lastLatency   prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry labelled with the run
func NewMetrics(runID, backend string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := prometheus.Labels{"run_id": runID, "backend": backend}
	m := &Metrics{
		registry: registry,
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cosmos_bench",
			Subsystem:   "query",
			Name:        "iterations_total",
			Help:        "Completed query executions",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "cosmos_bench",
			Subsystem:   "query",
			Name:        "failures_total",
			Help:        "Query executions that failed",
			ConstLabels: labels,
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "cosmos_bench",
			Subsystem:   "query",
			Name:        "latency_seconds",
			Help:        "Query execution latency including every page",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		requestCharge: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "cosmos_bench",
			Subsystem:   "query",
			Name:        "request_units",
			Help:        "Request units charged per query execution",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cosmos_bench",
			Subsystem:   "query",
			Name:        "last_latency_seconds",
			Help:        "Latency of the most recent query execution",
			ConstLabels: labels,
		}),
	}
	registry.MustRegister(m.iterations, m.failures, m.latency, m.requestCharge, m.lastLatency)
	return m
}

// Record implements Recorder
func (m *Metrics) Record(r Result) error {
	m.iterations.Inc()
	m.latency.Observe(r.Latency.Seconds())
	m.lastLatency.Set(r.Latency.Seconds())
	m.requestCharge.Observe(r.RequestCharge)
	return nil
}

// ObserveFailure counts a failed query execution
func (m *Metrics) ObserveFailure() {
	m.failures.Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server returns an HTTP server exposing /metrics on addr
func (m *Metrics) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
