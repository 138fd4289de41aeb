/*
Package taskpool provides a fixed-size worker pool that spreads one-shot tasks
over its workers in round-robin order.

Every worker owns a private mailbox. Submission picks the worker at index
`n mod parallel` for the n-th submission, enqueues the task on that worker's
mailbox and returns; it never waits for the task to run. Tasks routed to the
same worker run one at a time in the order they were enqueued. Tasks on
different workers run concurrently, in no particular order.

Basic usage:

	pool, err := taskpool.Default() // one worker per GOMAXPROCS
	if err != nil {
		log.Fatalf("taskpool: %v", err)
	}
	defer pool.Close()

	err = pool.Work(taskpool.TaskFunc(func() {
		// Do work
	}))

Handles:

A Handle is a shared reference to the pool. Clone it to give another
goroutine or component its own reference; all clones share one dispatch
counter, so submissions through a clone continue the same round-robin
sequence:

	worker := pool.Clone()
	go func() {
		defer worker.Close()
		_ = worker.Work(task)
	}()

The pool has no explicit shutdown. Once every Handle is closed (a Handle that
is garbage collected without Close counts as closed) each worker runs what is
already queued for it and exits. Close returns a channel that is closed when
the last worker has stopped:

	<-pool.Close()

Failures:

Work fails synchronously and never retries. The returned *SendError carries
the rejected task back to the caller:

	if err := pool.Work(task); err != nil {
		if rejected, ok := taskpool.RejectedTask(err); ok {
			// resubmit, run inline or drop
			_ = rejected
		}
	}

A task that panics takes its worker down with it. The panic is logged and
the worker's mailbox is disconnected: later submissions routed to that index
fail with ErrDisconnected, while the other workers keep running. The pool is
not repaired and loses that worker's share of capacity for good. Use
Config.OnWorkerExit, LiveWorkers or the rejected-task metric to notice a
degraded pool.

Configuration:

	pool, err := taskpool.New(taskpool.Config{
		Name:          "ingest",
		Parallelism:   8,    // 0 = host parallelism
		QueueCapacity: 1024, // 0 = unbounded mailboxes
		Logger:        logger,
		OnWorkerExit: func(id int, recovered interface{}) {
			log.Printf("worker %d stopped: %v", id, recovered)
		},
	})

With a bounded QueueCapacity, Work blocks while the target worker's mailbox
is full; WorkContext lets the caller bound that wait.

Metrics:

NewWithMetrics records submissions, rejections, executions and panics per
worker in Prometheus; see package metrics.
*/
package taskpool
