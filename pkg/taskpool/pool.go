package taskpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/mailbox"
	"github.com/vnykmshr/taskpool/pkg/metrics"
)

// poolState is shared by every Handle of one pool.
type poolState struct {
	config Config
	logger *zap.Logger
	inst   *instruments

	// Dispatch state. senders is fixed after construction.
	mu       sync.Mutex
	next     uint64
	senders  []*mailbox.Sender[Task]
	parallel int

	receivers []*mailbox.Receiver[Task]
	refs      atomic.Int64
	live      atomic.Int32
	workerWg  sync.WaitGroup
	done      chan struct{}
}

// Handle is a shared reference to a pool. Handles are cheap to Clone; every
// clone dispatches through the same counter and workers. The workers shut
// down once every Handle has been closed (or garbage collected).
type Handle struct {
	ref *handleRef
}

// handleRef carries a Handle's release state. It must never point back at
// its Handle so the Handle can be collected.
type handleRef struct {
	state  *poolState
	closed atomic.Bool
}

// New creates a pool and returns its first Handle.
//
// With a zero Config.Parallelism the worker count comes from the host; if
// the host cannot report it, New fails with an error wrapping
// ErrParallelismUnavailable. There is no fallback size.
func New(config Config) (*Handle, error) {
	return newPool(config, nil)
}

// Default creates a pool sized to the host with no other configuration.
func Default() (*Handle, error) {
	return New(Config{})
}

// MustNew is like New but panics if the pool cannot be built.
func MustNew(config Config) *Handle {
	h, err := New(config)
	if err != nil {
		panic(err)
	}
	return h
}

func newPool(config Config, registry *metrics.Registry) (*Handle, error) {
	if err := validation.ValidateNonNegative(module, "parallelism", config.Parallelism); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative(module, "queue_capacity", config.QueueCapacity); err != nil {
		return nil, err
	}

	parallel := config.Parallelism
	if parallel == 0 {
		n, err := hostParallelism()
		if err != nil {
			return nil, gferrors.NewOperationError(module, "New", err)
		}
		if validation.ValidatePositive(module, "parallelism", n) != nil {
			return nil, gferrors.NewOperationError(module, "New", ErrParallelismUnavailable).
				WithContext(fmt.Sprintf("host reported %d", n))
		}
		parallel = n
	}

	s := &poolState{
		config:    config,
		logger:    config.logger(),
		inst:      newInstruments(registry, config.name()),
		senders:   make([]*mailbox.Sender[Task], parallel),
		receivers: make([]*mailbox.Receiver[Task], parallel),
		parallel:  parallel,
		done:      make(chan struct{}),
	}
	s.refs.Store(1)
	s.live.Store(int32(parallel))

	for i := 0; i < parallel; i++ {
		tx, rx := mailbox.NewWithConfig[Task](mailbox.Config{Capacity: config.QueueCapacity})
		s.senders[i] = tx
		s.receivers[i] = rx

		w := &worker{id: i, pool: s, inbox: rx}
		s.workerWg.Add(1)
		go w.run()
	}

	go func() {
		s.workerWg.Wait()
		s.logger.Debug("all workers stopped")
		close(s.done)
	}()

	s.inst.started(parallel)
	s.logger.Info("pool started",
		zap.Int("parallel", parallel),
		zap.Int("queue_capacity", config.QueueCapacity))

	return newHandle(s), nil
}

func newHandle(s *poolState) *Handle {
	ref := &handleRef{state: s}
	h := &Handle{ref: ref}
	runtime.AddCleanup(h, func(r *handleRef) { r.release() }, ref)
	return h
}

// Work routes task to the next worker in round-robin order and enqueues it.
// A nil error means the task is queued, not that it has run.
//
// If the target worker has terminated, Work returns a *SendError wrapping
// ErrDisconnected whose Task field is the rejected task. The dispatch
// counter advances whether or not the send succeeds. Work never retries.
func (h *Handle) Work(task Task) error {
	return h.WorkContext(context.Background(), task)
}

// WorkContext is Work for pools with a bounded QueueCapacity: if the target
// mailbox is full it waits, and gives up with a *SendError wrapping the
// context error once ctx is done. A context that is already done is
// rejected before routing.
func (h *Handle) WorkContext(ctx context.Context, task Task) error {
	if err := validation.ValidateNotNil(module, "task", task); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return &SendError{Task: task, Worker: -1, Err: err}
	}
	if h.ref.closed.Load() {
		return &SendError{Task: task, Worker: -1, Err: ErrClosed}
	}

	s := h.ref.state
	idx, sender := s.dispatch()
	defer sender.Close()

	if err := sender.SendContext(ctx, task); err != nil {
		s.inst.rejected(idx)
		return &SendError{Task: task, Worker: idx, Err: err}
	}
	s.inst.submitted(idx)
	return nil
}

// dispatch picks the next worker and returns a private clone of its sender.
// The lock covers only index selection.
func (s *poolState) dispatch() (int, *mailbox.Sender[Task]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := int(s.next % uint64(s.parallel))
	s.next++
	return idx, s.senders[idx].Clone()
}

// Clone returns a new Handle for the same pool. Cloning a closed Handle, or
// one whose pool is already shutting down, returns a closed Handle.
func (h *Handle) Clone() *Handle {
	s := h.ref.state
	if h.ref.closed.Load() || !s.acquire() {
		ref := &handleRef{state: s}
		ref.closed.Store(true)
		return &Handle{ref: ref}
	}
	return newHandle(s)
}

// acquire takes a reference unless the count has already reached zero.
func (s *poolState) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Close releases this Handle. When the last Handle is released every
// worker finishes what is already queued for it and exits. Close is
// idempotent and returns a channel closed once all workers have stopped.
func (h *Handle) Close() <-chan struct{} {
	h.ref.release()
	return h.ref.state.done
}

func (r *handleRef) release() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.state.release()
}

func (s *poolState) release() {
	if s.refs.Add(-1) != 0 {
		return
	}

	s.logger.Debug("last handle released, closing worker mailboxes")
	for _, tx := range s.senders {
		tx.Close()
	}
}

// Size returns the number of workers the pool was built with.
func (h *Handle) Size() int {
	return h.ref.state.parallel
}

// Dispatched returns the dispatch counter: the number of submissions that
// have been routed to a worker, successful or not.
func (h *Handle) Dispatched() uint64 {
	s := h.ref.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// LiveWorkers returns the number of workers that have not terminated.
func (h *Handle) LiveWorkers() int {
	return int(h.ref.state.live.Load())
}

// QueueLen returns the number of tasks waiting in a worker's mailbox.
// Out-of-range indexes report 0.
func (h *Handle) QueueLen(worker int) int {
	s := h.ref.state
	if worker < 0 || worker >= len(s.receivers) {
		return 0
	}
	return s.receivers[worker].Len()
}

// Done returns a channel that is closed once every worker has stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.ref.state.done
}
