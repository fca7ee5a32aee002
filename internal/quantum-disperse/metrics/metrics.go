// Package metrics exposes prometheus collectors for the disperse client.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantum_disperse"

type Metrics struct {
	registry *prometheus.Registry

	transactions   *prometheus.CounterVec
	batchSize      prometheus.Histogram
	activeSessions prometheus.Gauge
	staleResults   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by action and result.",
		}, []string{"action", "result"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_recipients",
			Help:      "Recipients per submitted disperse.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Connected sessions.",
		}),
		staleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Chain results discarded because a newer request superseded them.",
		}, []string{"component"}),
	}
	m.registry.MustRegister(
		m.transactions,
		m.batchSize,
		m.activeSessions,
		m.staleResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Transaction counts one finished transaction; result is "success" or a
// failure kind.
func (m *Metrics) Transaction(action, result string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) BatchSubmitted(recipients int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(recipients))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) StaleResult(component string) {
	if m == nil {
		return
	}
	m.staleResults.WithLabelValues(component).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
