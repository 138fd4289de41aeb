package scheduler

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/common/validation"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/taskpool"
)

const module = "scheduler"

// ErrNotFound is returned for operations on an unknown entry id.
var ErrNotFound = errors.New("entry not found")

// TaskFactory builds the task submitted on one firing. Tasks run once, so a
// fresh one is needed every time the schedule fires.
type TaskFactory func() taskpool.Task

// Config holds scheduler configuration.
type Config struct {
	// Name identifies the scheduler in logs and metrics. Defaults to "default".
	Name string

	// Location is the time zone expressions are evaluated in. Defaults to time.Local.
	Location *time.Location

	// Logger receives scheduler events. If nil, zap.L() is used.
	Logger *zap.Logger

	// OnReject is called when a firing could not be submitted to the pool.
	OnReject func(id string, err error)

	// Metrics controls Prometheus instrumentation. Disabled by default.
	Metrics metrics.Config
}

// Entry is a snapshot of one scheduled expression.
type Entry struct {
	ID         string
	Expression string
	Next       time.Time
	Prev       time.Time
	Firings    uint64
	Rejected   uint64
}

type entry struct {
	id       string
	expr     string
	schedule cron.Schedule
	factory  TaskFactory
	cronID   cron.EntryID

	firings  atomic.Uint64
	rejected atomic.Uint64
}

// Scheduler submits tasks into a pool on cron schedules.
type Scheduler struct {
	pool     *taskpool.Handle
	config   Config
	name     string
	logger   *zap.Logger
	registry *metrics.Registry
	parser   cron.Parser
	location *time.Location
	cron     *cron.Cron

	mu      sync.RWMutex
	entries map[string]*entry
	stopped bool

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a scheduler that submits into pool. The scheduler keeps its
// own clone of pool, released by Stop.
func New(pool *taskpool.Handle, config Config) (*Scheduler, error) {
	if err := validation.ValidateNotNil(module, "pool", pool); err != nil {
		return nil, err
	}

	name := config.Name
	if name == "" {
		name = taskpool.DefaultName
	}

	location := config.Location
	if location == nil {
		location = time.Local
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named(module).With(zap.String("scheduler", name))

	// Optional seconds field plus descriptors such as "@every 5s" or "@hourly".
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		pool:     pool.Clone(),
		config:   config,
		name:     name,
		logger:   logger,
		registry: config.Metrics.Resolve(),
		parser:   parser,
		location: location,
		entries:  make(map[string]*entry),
		done:     make(chan struct{}),
	}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)

	return s, nil
}

// Schedule registers factory under id on the cron expression expr.
// Expressions accept an optional leading seconds field and descriptors.
func (s *Scheduler) Schedule(id, expr string, factory TaskFactory) error {
	if err := validation.ValidateNotEmpty(module, "id", id); err != nil {
		return err
	}
	if err := validation.ValidateNotNil(module, "factory", factory); err != nil {
		return err
	}

	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return gferrors.NewValidationError(module, "expression", expr, err.Error()).
			WithHint("use 5 or 6 cron fields or a descriptor like @every 1m")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return gferrors.NewOperationError(module, "Schedule", gferrors.ErrClosed)
	}
	if _, exists := s.entries[id]; exists {
		return gferrors.NewValidationError(module, "id", id, "already scheduled")
	}

	e := &entry{id: id, expr: expr, schedule: schedule, factory: factory}
	e.cronID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(e) }))
	s.entries[id] = e
	if s.registry != nil {
		// Export zero-valued series from the start.
		s.registry.SchedulerFirings.WithLabelValues(s.name, id)
		s.registry.SchedulerRejected.WithLabelValues(s.name, id)
	}

	s.logger.Debug("entry scheduled", zap.String("entry", id), zap.String("expression", expr))
	return nil
}

// fire submits one task for e.
func (s *Scheduler) fire(e *entry) {
	task := e.factory()
	err := s.pool.Work(task)
	if err == nil {
		e.firings.Add(1)
		if s.registry != nil {
			s.registry.SchedulerFirings.WithLabelValues(s.name, e.id).Inc()
		}
		return
	}

	e.rejected.Add(1)
	if s.registry != nil {
		s.registry.SchedulerRejected.WithLabelValues(s.name, e.id).Inc()
	}
	s.logger.Warn("scheduled submission rejected", zap.String("entry", e.id), zap.Error(err))

	if s.config.OnReject != nil {
		s.config.OnReject(e.id, err)
	}
}

// Remove unschedules id and reports whether it existed. A firing already in
// progress is not interrupted.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[id]
	if !exists {
		return false
	}
	s.cron.Remove(e.cronID)
	delete(s.entries, id)
	if s.registry != nil {
		s.registry.SchedulerFirings.DeleteLabelValues(s.name, id)
		s.registry.SchedulerRejected.DeleteLabelValues(s.name, id)
	}
	return true
}

// Next returns the next time id fires.
func (s *Scheduler) Next(id string) (time.Time, error) {
	s.mu.RLock()
	e, exists := s.entries[id]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, gferrors.NewOperationError(module, "Next", ErrNotFound).WithContext("id " + id)
	}
	return s.snapshot(e).Next, nil
}

// Entries returns a snapshot of every entry, ordered by id.
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	s.mu.RUnlock()

	out := make([]Entry, len(list))
	for i, e := range list {
		out[i] = s.snapshot(e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Scheduler) snapshot(e *entry) Entry {
	ce := s.cron.Entry(e.cronID)
	next := ce.Next
	if next.IsZero() {
		// Not started yet: cron only computes Next once running.
		next = e.schedule.Next(time.Now().In(s.location))
	}
	return Entry{
		ID:         e.id,
		Expression: e.expr,
		Next:       next,
		Prev:       ce.Prev,
		Firings:    e.firings.Load(),
		Rejected:   e.rejected.Load(),
	}
}

// Validate reports whether expr is a valid schedule expression.
func (s *Scheduler) Validate(expr string) error {
	_, err := s.parser.Parse(expr)
	return err
}

// Start begins firing entries. Starting a running scheduler is a no-op;
// starting a stopped one fails.
func (s *Scheduler) Start() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return gferrors.NewOperationError(module, "Start", gferrors.ErrClosed)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.entries)))
	return nil
}

// Stop halts firing and returns a channel that is closed once in-flight
// firings have finished and the scheduler's pool handle is released.
// Tasks already submitted keep running in the pool.
func (s *Scheduler) Stop() <-chan struct{} {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		ctx := s.cron.Stop()
		go func() {
			<-ctx.Done()
			s.pool.Close()
			s.logger.Info("scheduler stopped")
			close(s.done)
		}()
	})
	return s.done
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
