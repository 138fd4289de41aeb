package taskpool

import (
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/taskpool/pkg/mailbox"
)

// worker owns the receiving end of exactly one mailbox.
type worker struct {
	id    int
	pool  *poolState
	inbox *mailbox.Receiver[Task]
}

// run is the main loop for a worker. It returns when the mailbox is closed
// and drained, or right after a task panics.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	var recovered interface{}
	defer func() { w.terminate(recovered) }()

	for {
		task, err := w.inbox.Receive()
		if err != nil {
			return
		}
		if recovered = w.execute(task); recovered != nil {
			return
		}
	}
}

// execute runs a single task synchronously and reports a recovered panic.
// The panic is contained here only so it cannot take the process down; the
// worker still terminates because of it.
func (w *worker) execute(task Task) (recovered interface{}) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			recovered = r
			w.pool.inst.panicked(w.id)
			w.pool.logger.Error("task panicked, worker terminating",
				zap.Int("worker", w.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if hook := w.pool.config.OnTaskStart; hook != nil {
		hook(w.id, task)
	}

	task.Run()
	w.pool.inst.executed(w.id, time.Since(start))
	return nil
}

// terminate disconnects the mailbox so later sends to this index fail, then
// reports the exit. The pool's dispatch state is left untouched.
func (w *worker) terminate(recovered interface{}) {
	if n := w.inbox.Close(); n > 0 {
		w.pool.inst.discarded(w.id, n)
		w.pool.logger.Warn("dropped queued tasks of terminated worker",
			zap.Int("worker", w.id),
			zap.Int("tasks", n))
	}

	live := w.pool.live.Add(-1)
	w.pool.inst.workerExited(int(live))

	if recovered == nil {
		w.pool.logger.Debug("worker stopped", zap.Int("worker", w.id))
	}

	if hook := w.pool.config.OnWorkerExit; hook != nil {
		hook(w.id, recovered)
	}
}
