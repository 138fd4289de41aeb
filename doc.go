/*
Package taskpool is the root of a Go library for spreading one-shot tasks over
a fixed set of workers in strict round-robin order.

Task Dispatch (pkg/taskpool):
  - Handle: shared, cloneable reference to a pool
  - Work / WorkContext: enqueue on worker n mod parallel
  - SendError: a refused submission, with the task handed back

Building Blocks:
  - mailbox: unbounded or bounded multi-producer, single-consumer queue
  - scheduler: cron-driven periodic submission into a pool
  - metrics: Prometheus instrumentation for pools and schedulers

Command (cmd/taskpool):
  - run: synthetic load with a per-worker distribution summary
  - version: build information

Example usage:

	import "github.com/vnykmshr/taskpool/pkg/taskpool"

	pool, err := taskpool.Default() // one worker per GOMAXPROCS
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Work(task); err != nil {
		rejected, _ := taskpool.RejectedTask(err)
		rejected.Run() // worker is gone; run inline
	}
*/
package taskpool
