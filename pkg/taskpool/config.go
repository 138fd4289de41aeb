package taskpool

import (
	"runtime"

	"go.uber.org/zap"
)

const module = "taskpool"

// DefaultName labels pools created without a name.
const DefaultName = "default"

// Config holds configuration options for creating a pool.
// The zero value builds a pool sized to the host.
type Config struct {
	// Name identifies the pool in logs and metrics. Defaults to DefaultName.
	Name string

	// Parallelism overrides the number of workers. Zero means use the
	// host-reported parallelism; negative values are rejected.
	Parallelism int

	// QueueCapacity bounds each worker's mailbox. Zero means unbounded, in
	// which case Work never blocks. With a bound, Work blocks while the
	// target worker's mailbox is full and WorkContext can give up.
	QueueCapacity int

	// Logger receives pool and worker events. If nil, zap.L() is used.
	Logger *zap.Logger

	// OnTaskStart is called on the worker goroutine right before a task runs.
	OnTaskStart func(workerID int, task Task)

	// OnWorkerExit is called when a worker terminates. recovered is nil when
	// the worker's mailbox closed and holds the panic value when a task
	// took the worker down.
	OnWorkerExit func(workerID int, recovered interface{})
}

// hostParallelism reports how many goroutines the runtime will run
// simultaneously. GOMAXPROCS honours CPU affinity and container quotas.
var hostParallelism = func() (int, error) {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 0, ErrParallelismUnavailable
	}
	return n, nil
}

func (c Config) name() string {
	if c.Name == "" {
		return DefaultName
	}
	return c.Name
}

func (c Config) logger() *zap.Logger {
	logger := c.Logger
	if logger == nil {
		logger = zap.L()
	}
	return logger.Named(module).With(zap.String("pool", c.name()))
}
