package observability

import (
	"net/http"

	"github.com/contentpilot/engine/models"
	"github.com/contentpilot/engine/services/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. It implements the
// execution coordinator's usage sink, so every provider attempt lands in
// the counters, and observes circuit breaker transitions through
// ObserveTransition.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	costTotal       *prometheus.CounterVec
	unitsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	providerState   *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_provider_requests_total",
			Help: "Provider generation attempts by outcome",
		}, []string{"provider", "content_type", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_provider_request_duration_seconds",
			Help:    "Provider attempt duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "content_type"}),
		costTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_generation_cost_dollars_total",
			Help: "Accumulated USD cost of successful generations",
		}, []string{"provider", "content_type"}),
		unitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_generation_units_total",
			Help: "Accumulated content units of successful generations",
		}, []string{"provider", "content_type"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_provider_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"provider", "to"}),
		providerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_provider_state",
			Help: "Provider availability state (0 available, 1 degraded, 2 disqualified)",
		}, []string{"provider"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.costTotal,
		m.unitsTotal,
		m.transitionsTotal,
		m.providerState,
	)
	return m
}

// Handler serves the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Record folds one usage record into the collectors
func (m *Metrics) Record(usage *models.UsageRecord) {
	outcome := "failure"
	if usage.Success {
		outcome = "success"
	}
	m.requestsTotal.WithLabelValues(usage.Provider, string(usage.ContentType), outcome).Inc()
	m.requestDuration.WithLabelValues(usage.Provider, string(usage.ContentType)).Observe(usage.ResponseTime.Seconds())
	if usage.Success {
		m.costTotal.WithLabelValues(usage.Provider, string(usage.ContentType)).Add(usage.Cost)
		m.unitsTotal.WithLabelValues(usage.Provider, string(usage.ContentType)).Add(float64(usage.Units))
	}
}

// ObserveTransition updates the transition counter and state gauge
func (m *Metrics) ObserveTransition(tr health.Transition) {
	m.transitionsTotal.WithLabelValues(tr.Provider, string(tr.To)).Inc()
	m.providerState.WithLabelValues(tr.Provider).Set(stateValue(tr.To))
}

func stateValue(s health.State) float64 {
	switch s {
	case health.StateDegraded:
		return 1
	case health.StateDisqualified:
		return 2
	default:
		return 0
	}
}
