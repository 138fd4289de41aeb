// Package metrics provides Prometheus instrumentation for taskpool components.
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructor:
//
//	pool, err := taskpool.NewWithMetrics(taskpool.Config{}, "ingest", metrics.DefaultConfig())
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	pool, err := taskpool.NewWithMetrics(taskpool.Config{}, "ingest", metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	})
//
// Every component configured with the same registerer shares one Registry,
// so several pools and schedulers can report into it side by side.
//
// # Available Metrics
//
// Pool metrics (labels: pool, and worker where noted):
//
//   - taskpool_pool_size: Number of workers the pool was built with
//   - taskpool_pool_workers_live: Workers that have not terminated
//   - taskpool_pool_tasks_submitted_total{worker}: Tasks enqueued per worker
//   - taskpool_pool_tasks_rejected_total{worker}: Submissions refused by a terminated worker
//   - taskpool_pool_tasks_executed_total{worker}: Tasks that ran to completion
//   - taskpool_pool_tasks_panicked_total{worker}: Tasks that panicked and took their worker down
//   - taskpool_pool_tasks_discarded_total{worker}: Queued tasks dropped with a dead worker
//   - taskpool_pool_task_duration_seconds: Task execution time
//
// Scheduler metrics (labels: scheduler, entry):
//
//   - taskpool_scheduler_firings_total: Cron firings that submitted a task
//   - taskpool_scheduler_rejected_total: Cron firings whose submission was refused
//
// Worker-labelled series make a degraded pool visible: a worker index whose
// rejected counter grows while executed stays flat has terminated.
package metrics
