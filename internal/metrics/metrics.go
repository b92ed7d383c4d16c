// Package metrics exposes the orchestrator's Prometheus instrumentation,
// following oriys-function's and tombee-conductor's direct use of
// prometheus/client_golang for service metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ExecutionsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "durableflow",
		Name:      "executions_claimed_total",
		Help:      "Scheduled executions claimed by a worker loop.",
	})

	ExecutionsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "durableflow",
		Name:      "executions_completed_total",
		Help:      "Terminal executions returned by the worker's advance and resume phases, by status; interpreter errors and the overdue sweep are not counted.",
	}, []string{"status"})

	ExecutionsResumed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "durableflow",
		Name:      "executions_resumed_total",
		Help:      "Waiting executions successfully claimed for resume.",
	})

	CallsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "durableflow",
		Name:      "calls_submitted_total",
		Help:      "Pending calls submitted to an executor; the worker labels every submission \"dispatch\".",
	}, []string{"executor"})

	CallsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "durableflow",
		Name:      "calls_completed_total",
		Help:      "Calls reaching a terminal status, by outcome.",
	}, []string{"outcome"})

	WorkerLoopDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "durableflow",
		Name:      "worker_loop_duration_seconds",
		Help:      "Wall time of one full worker loop tick.",
	})
)

// MustRegister registers every collector above against reg. Call once at
// startup; a nil reg registers against the default Prometheus registry.
func MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		ExecutionsClaimed,
		ExecutionsCompleted,
		ExecutionsResumed,
		CallsSubmitted,
		CallsCompleted,
		WorkerLoopDuration,
	)
}
