// Package metrics provides Prometheus instrumentation for taskpool components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "taskpool"

// Registry holds all metric instances for taskpool components.
type Registry struct {
	// Pool metrics
	PoolSize       *prometheus.GaugeVec
	WorkersLive    *prometheus.GaugeVec
	TasksSubmitted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksExecuted  *prometheus.CounterVec
	TasksPanicked  *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TasksDiscarded *prometheus.CounterVec

	// Scheduler metrics
	SchedulerFirings  *prometheus.CounterVec
	SchedulerRejected *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by taskpool components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		PoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "size",
				Help:      "Number of workers the pool was built with",
			},
			[]string{"pool"},
		),

		WorkersLive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "workers_live",
				Help:      "Number of workers that have not terminated",
			},
			[]string{"pool"},
		),

		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks enqueued on a worker",
			},
			[]string{"pool", "worker"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "tasks_rejected_total",
				Help:      "Total number of submissions refused because the target worker was gone",
			},
			[]string{"pool", "worker"},
		),

		TasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "tasks_executed_total",
				Help:      "Total number of tasks that ran to completion",
			},
			[]string{"pool", "worker"},
		),

		TasksPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "tasks_panicked_total",
				Help:      "Total number of tasks that panicked and took their worker down",
			},
			[]string{"pool", "worker"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool"},
		),

		TasksDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pool",
				Name:      "tasks_discarded_total",
				Help:      "Total number of queued tasks dropped when their worker terminated",
			},
			[]string{"pool", "worker"},
		),

		SchedulerFirings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "scheduler",
				Name:      "firings_total",
				Help:      "Total number of cron firings that submitted a task",
			},
			[]string{"scheduler", "entry"},
		),

		SchedulerRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "scheduler",
				Name:      "rejected_total",
				Help:      "Total number of cron firings whose submission was refused",
			},
			[]string{"scheduler", "entry"},
		),
	}
}
