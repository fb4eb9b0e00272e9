package metrics

import "github.com/prometheus/client_golang/prometheus"

// dependencyMetrics track the health of the index store and model backends.
// Both the api and the worker register them.
type dependencyMetrics struct {
	service        string
	indexFallbacks *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

func newDependencyMetrics(registry *prometheus.Registry, service string) *dependencyMetrics {
	indexFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_fallback_total",
			Help:      "Total index store operations answered by the fallback path.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"operation"},
	)
	registry.MustRegister(indexFallbacks, breakerState)
	return &dependencyMetrics{
		service:        service,
		indexFallbacks: indexFallbacks,
		breakerState:   breakerState,
	}
}

func (m *dependencyMetrics) recordIndexFallback(operation string) {
	if operation == "" {
		operation = "unknown"
	}
	m.indexFallbacks.WithLabelValues(operation).Inc()
}

func (m *dependencyMetrics) recordBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
