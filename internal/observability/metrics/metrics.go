// Package metrics exposes gateway and agent metrics in the Prometheus text
// exposition format. All methods are safe on a nil *Metrics so callers can
// disable collection without branching.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "infogenai"

var latencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics groups every collector the gateway exports.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	agentCalls *prometheus.CounterVec
	agentTime  *prometheus.HistogramVec
	dispatches *prometheus.CounterVec
	agents     prometheus.Gauge
}

// New builds a Metrics instance on its own registry, including Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by handler, method and status code.",
		}, []string{"handler", "method", "code"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "HTTP requests answered with a 5xx status.",
		}, []string{"handler", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   latencyBuckets,
		}, []string{"handler", "method"}),
		agentCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Agent Process calls by agent and outcome.",
		}, []string{"agent", "outcome"}),
		agentTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_duration_seconds",
			Help:      "Agent Process latency.",
			Buckets:   latencyBuckets,
		}, []string{"agent"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Dispatched requests by command kind and outcome.",
		}, []string{"kind", "outcome"}),
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_loaded",
			Help:      "Agents present in the registry.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.errors, m.latency,
		m.agentCalls, m.agentTime, m.dispatches, m.agents,
	)
	return m
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func (m *Metrics) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		m.errors.WithLabelValues(handler, method).Inc()
	}
	m.latency.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// ObserveAgent records one agent invocation.
func (m *Metrics) ObserveAgent(agent, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.agentCalls.WithLabelValues(agent, outcome).Inc()
	m.agentTime.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// ObserveDispatch records one dispatched request.
func (m *Metrics) ObserveDispatch(kind, outcome string, _ time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(kind, outcome).Inc()
}

// SetAgents reports the registry size.
func (m *Metrics) SetAgents(n int) {
	if m == nil {
		return
	}
	m.agents.Set(float64(n))
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the metrics in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
