/*
Package scheduler submits tasks into a taskpool on cron schedules.

Expressions use the standard five cron fields with an optional leading
seconds field, or one of the descriptors (@hourly, @daily, @every 30s, ...):

	"0 0/5 * * * *"   - every 5 minutes, on the minute
	"30 0 9 * * 1-5"  - 09:00:30 on weekdays
	"@every 1m"       - every minute from Start

Tasks run once, so each entry is registered with a TaskFactory that builds
a fresh task per firing:

	sched, err := scheduler.New(pool, scheduler.Config{Name: "reports"})
	if err != nil {
		return err
	}
	err = sched.Schedule("nightly", "0 2 * * *", func() taskpool.Task {
		return taskpool.TaskFunc(buildReport)
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer func() { <-sched.Stop() }()

The scheduler holds its own clone of the pool handle, so the pool stays up
until Stop even if the caller closes its handle first. A firing only
enqueues; the task runs on whichever worker the pool's round-robin picks.
If the pool refuses the submission (its target worker is gone) the firing
is logged, counted in Entry.Rejected and reported to Config.OnReject; it is
not retried.
*/
package scheduler
