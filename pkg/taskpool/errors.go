package taskpool

import (
	"errors"
	"fmt"

	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

var (
	// ErrClosed is the cause of a SendError returned by a Handle that has
	// already been closed.
	ErrClosed = gferrors.ErrClosed

	// ErrDisconnected is the cause of a SendError returned when the target
	// worker has terminated.
	ErrDisconnected = gferrors.ErrDisconnected

	// ErrParallelismUnavailable is returned (wrapped) by New when the host
	// does not report a usable degree of parallelism.
	ErrParallelismUnavailable = gferrors.ErrParallelismUnavailable
)

// SendError reports a submission that did not reach a worker. Task is the
// rejected task, unchanged, so the caller can resubmit or drop it.
type SendError struct {
	// Task is the undelivered task.
	Task Task

	// Worker is the index the task was routed to, or -1 when it was
	// rejected before routing.
	Worker int

	// Err is the underlying cause.
	Err error
}

func (e *SendError) Error() string {
	if e.Worker < 0 {
		return fmt.Sprintf("taskpool: submit failed: %v", e.Err)
	}
	return fmt.Sprintf("taskpool: submit to worker %d failed: %v", e.Worker, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// RejectedTask extracts the undelivered task from an error returned by Work.
func RejectedTask(err error) (Task, bool) {
	var serr *SendError
	if errors.As(err, &serr) {
		return serr.Task, true
	}
	return nil, false
}
