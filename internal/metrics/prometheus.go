package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every faultsim collector.
	Registry = prometheus.NewRegistry()

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultsim",
			Name:      "decisions_total",
			Help:      "Fault injector decisions by kind and outcome.",
		},
		[]string{"decision", "outcome"},
	)

	copiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultsim",
			Name:      "message_copies_total",
			Help:      "Message copies flushed by the simulated network.",
		},
		[]string{"result"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultsim",
			Name:      "node_transitions_total",
			Help:      "Node liveness transitions applied by the harness.",
		},
		[]string{"transition"},
	)

	roundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faultsim",
			Name:      "round_duration_seconds",
			Help:      "Wall time of one simulated round.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "faultsim",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(decisionsTotal, copiesTotal, transitionsTotal, roundDuration, uptime)
}

// Handler exposes /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRound records the wall time of one simulated round.
func ObserveRound(d time.Duration) {
	roundDuration.Observe(d.Seconds())
}
