package taskpool

// Task is a one-shot unit of work. A worker calls Run exactly once and then
// drops the task; ownership passes to the pool on a successful Work call.
// A Task that shares state with other goroutines must synchronize it itself.
type Task interface {
	Run()
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func()

// Run implements the Task interface for TaskFunc.
func (f TaskFunc) Run() {
	f()
}
