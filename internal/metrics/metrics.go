// Package metrics defines the Prometheus collectors for calls to the task
// service and for requests served by the gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tasklet"

// Result label values for token acquisitions.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the collectors registered on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	tokenAcquisitions *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamInFlight prometheus.Gauge

	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// New creates Metrics with its own registry, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_acquisitions_total",
			Help:      "Token exchanges against the authentication endpoint, by result.",
		}, []string{"result"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests sent to the task service, by method and status code.",
		}, []string{"method", "code"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests sent to the task service.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"method"}),
		upstreamInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_in_flight",
			Help:      "Requests to the task service currently awaiting a response.",
		}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Requests served by the gateway, by method and status code.",
		}, []string{"method", "code"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests served by the gateway.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokenAcquisitions,
		m.upstreamRequests,
		m.upstreamDuration,
		m.upstreamInFlight,
		m.gatewayRequests,
		m.gatewayDuration,
	)

	return m
}

// ObserveTokenAcquisition records the outcome of one token exchange.
// Its signature matches credential.WithObserver.
func (m *Metrics) ObserveTokenAcquisition(err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.tokenAcquisitions.WithLabelValues(result).Inc()
}

// InstrumentTransport wraps next so every outgoing request is counted and timed.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.upstreamInFlight,
		promhttp.InstrumentRoundTripperCounter(m.upstreamRequests,
			promhttp.InstrumentRoundTripperDuration(m.upstreamDuration, next),
		),
	)
}

// InstrumentHandler wraps a gateway handler so every served request is counted and timed.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.gatewayRequests,
		promhttp.InstrumentHandlerDuration(m.gatewayDuration, next),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
