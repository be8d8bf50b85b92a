package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_breaker_state",
			Help: "Current store breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_breaker_transition_total",
			Help: "Count of store breaker state transitions",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_breaker_open_total",
			Help: "Number of times a store breaker transitioned into open state",
		},
		[]string{"target"},
	)
	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_retry_attempts_total",
			Help: "Retries scheduled after a transient store failure",
		},
		[]string{"target", "op"},
	)
	RetryExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_retry_exhausted_total",
			Help: "Store operations that failed after exhausting retries",
		},
		[]string{"target", "op"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, RetryAttempts, RetryExhausted)
}
