// Package metrics exposes Prometheus instrumentation for the orchestrator:
// task outcomes and duration, per-step results, and live MCP connection
// count. Grounded on the pack's background-worker metrics style
// (internal/background/metrics.go in the SuperAgent example): one struct of
// promauto-registered collectors built once at startup and passed down
// instead of referenced through package globals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector the orchestrator reports. Callers hold a
// single instance and pass it (or nil) into components that instrument
// themselves; a nil *Registry receiver is a no-op, so instrumentation calls
// never need a surrounding nil check at the call site.
type Registry struct {
	TasksTotal     *prometheus.CounterVec
	TaskDuration   prometheus.Histogram
	StepsTotal     *prometheus.CounterVec
	Iterations     prometheus.Histogram
	MCPConnections prometheus.Gauge
	QueueDepth     prometheus.Gauge
	WorkersActive  prometheus.Gauge
}

// NewRegistry creates and registers every collector against reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate-registration panics
// across test runs.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "tasks_total",
			Help:      "Total number of execute() runs, by terminal outcome.",
		}, []string{"outcome"}), // outcome: success, failure

		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of one execute() run.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),

		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orchestrator",
			Name:      "steps_total",
			Help:      "Total number of workflow steps executed, by class and outcome.",
		}, []string{"class", "outcome"}), // class: mcp, llm; outcome: success, failure

		Iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "orchestrator",
			Name:      "iterations_per_task",
			Help:      "Number of plan-act-observe iterations a task consumed.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),

		MCPConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Name:      "mcp_connections",
			Help:      "Live (user_id, service_name) MCP connections.",
		}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Name:      "queue_depth",
			Help:      "Tasks currently queued or claimed, awaiting completion.",
		}),

		WorkersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "orchestrator",
			Name:      "workers_active",
			Help:      "Worker pool goroutines currently processing a task.",
		}),
	}
}

// RecordTask records one execute() run's terminal outcome and duration.
func (r *Registry) RecordTask(success bool, durationSeconds float64) {
	if r == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.TasksTotal.WithLabelValues(outcome).Inc()
	r.TaskDuration.Observe(durationSeconds)
}

// RecordStep records one step's class and outcome.
func (r *Registry) RecordStep(class string, success bool) {
	if r == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.StepsTotal.WithLabelValues(class, outcome).Inc()
}

// RecordIterations records the number of iterations a completed task consumed.
func (r *Registry) RecordIterations(n int) {
	if r == nil {
		return
	}
	r.Iterations.Observe(float64(n))
}

// SetMCPConnections reports the manager's current live connection count.
func (r *Registry) SetMCPConnections(n int) {
	if r == nil {
		return
	}
	r.MCPConnections.Set(float64(n))
}

// SetQueueDepth reports the current number of queued/claimed tasks.
func (r *Registry) SetQueueDepth(n int64) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

// SetWorkersActive reports how many worker goroutines are mid-task.
func (r *Registry) SetWorkersActive(n int) {
	if r == nil {
		return
	}
	r.WorkersActive.Set(float64(n))
}
