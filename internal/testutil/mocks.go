package testutil

import (
	"sort"
	"sync"
	"testing"
)

// Execution is one recorded task run.
type Execution struct {
	Task   int
	Worker int
}

// Recorder is an externally synchronized results collector for tasks that
// report which worker ran them.
type Recorder struct {
	mu   sync.Mutex
	runs []Execution
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an execution in arrival order.
func (r *Recorder) Record(task, worker int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, Execution{Task: task, Worker: worker})
}

// Len returns the number of recorded executions.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// Executions returns a copy of everything recorded so far.
func (r *Recorder) Executions() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Execution, len(r.runs))
	copy(out, r.runs)
	return out
}

// TaskIDs returns the recorded task ids, sorted.
func (r *Recorder) TaskIDs() []int {
	runs := r.Executions()
	ids := make([]int, len(runs))
	for i, run := range runs {
		ids[i] = run.Task
	}
	sort.Ints(ids)
	return ids
}

// ByWorker groups task ids by worker, preserving the order they started in.
func (r *Recorder) ByWorker() map[int][]int {
	out := make(map[int][]int)
	for _, run := range r.Executions() {
		out[run.Worker] = append(out[run.Worker], run.Task)
	}
	return out
}

// Gate blocks any number of goroutines until it is opened.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Wait blocks until Open is called.
func (g *Gate) Wait() {
	<-g.ch
}

// Open releases all current and future waiters. Safe to call repeatedly.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.ch) })
}

// CallbackTracker records how often a callback ran and the last value it saw.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
	value interface{}
}

// NewCallbackTracker creates a tracker with no calls recorded.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records a call, optionally storing the first argument as the value.
func (c *CallbackTracker) Mark(value ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(value) > 0 {
		c.value = value[0]
	}
}

// Called reports whether Mark ran at least once.
func (c *CallbackTracker) Called() bool {
	return c.CallCount() > 0
}

// CallCount returns the number of Mark calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Value returns the last value passed to Mark.
func (c *CallbackTracker) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// AssertNotCalled fails the test if the callback ran.
func (c *CallbackTracker) AssertNotCalled(t *testing.T) {
	t.Helper()
	if c.Called() {
		t.Fatalf("expected callback not to be called, got %d calls", c.CallCount())
	}
}

// AssertCallCount fails the test unless the callback ran exactly want times.
func (c *CallbackTracker) AssertCallCount(t *testing.T, want int) {
	t.Helper()
	if got := c.CallCount(); got != want {
		t.Fatalf("call count = %d, want %d", got, want)
	}
}
