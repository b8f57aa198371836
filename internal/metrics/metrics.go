// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codesense",
		Name:      "analyze_requests_total",
		Help:      "Analyze requests by outcome.",
	}, []string{"outcome"})

	sandboxExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codesense",
		Name:      "sandbox_executions_total",
		Help:      "Sandbox executions by terminal status.",
	}, []string{"status"})

	sandboxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codesense",
		Name:      "sandbox_duration_seconds",
		Help:      "Wall-clock duration of sandbox executions.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	})
)

// AnalyzeRequest records one analyze call with its outcome.
func AnalyzeRequest(outcome string) {
	analyzeRequests.WithLabelValues(outcome).Inc()
}

// SandboxExecution records one sandbox run's terminal status.
func SandboxExecution(status string) {
	sandboxExecutions.WithLabelValues(status).Inc()
}

// SandboxDurationSeconds records how long a sandbox run took.
func SandboxDurationSeconds(seconds float64) {
	sandboxDuration.Observe(seconds)
}
