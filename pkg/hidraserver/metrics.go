package hidraserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ReductionsSubmitted prometheus.Counter
	ReductionsFailed    prometheus.Counter
	PatternsServed      prometheus.Counter
	StatusQueries       prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ReductionsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reductions_submitted",
		Help: "Number of reduction jobs accepted over the API",
	})
	m.registry.MustRegister(m.ReductionsSubmitted)

	m.ReductionsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reductions_failed",
		Help: "Number of reduction submissions that were rejected",
	})
	m.registry.MustRegister(m.ReductionsFailed)

	m.PatternsServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "patterns_served",
		Help: "Number of reduced patterns served",
	})
	m.registry.MustRegister(m.PatternsServed)

	m.StatusQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "status_queries",
		Help: "Number of run status queries",
	})
	m.registry.MustRegister(m.StatusQueries)

	return m
}
