package scheduler

import (
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/vnykmshr/taskpool/internal/testutil"
	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/taskpool"
)

func newPool(t *testing.T, parallel int) *taskpool.Handle {
	t.Helper()
	pool, err := taskpool.New(taskpool.Config{Parallelism: parallel, Logger: zaptest.NewLogger(t)})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		testutil.WaitClosed(t, pool.Close(), testutil.TestTimeout)
	})
	return pool
}

func newScheduler(t *testing.T, pool *taskpool.Handle, config Config) *Scheduler {
	t.Helper()
	if config.Logger == nil {
		config.Logger = zaptest.NewLogger(t)
	}
	s, err := New(pool, config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		testutil.WaitClosed(t, s.Stop(), testutil.TestTimeout)
	})
	return s
}

func counterFactory(n *int32) TaskFactory {
	return func() taskpool.Task {
		return taskpool.TaskFunc(func() { atomic.AddInt32(n, 1) })
	}
}

func TestNewRequiresPool(t *testing.T) {
	_, err := New(nil, Config{})
	if !gferrors.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	s := newScheduler(t, newPool(t, 1), Config{})

	tests := []struct {
		expr        string
		expectError bool
	}{
		{"*/5 * * * *", false},
		{"30 */5 * * * *", false},
		{"@every 1m", false},
		{"@hourly", false},
		{"0 9 * * 1-5", false},
		{"", true},
		{"not a schedule", true},
		{"* * *", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := s.Validate(tt.expr)
			if tt.expectError {
				testutil.AssertError(t, err)
			} else {
				testutil.AssertNoError(t, err)
			}
		})
	}
}

func TestScheduleRejectsInvalidInput(t *testing.T) {
	s := newScheduler(t, newPool(t, 1), Config{})
	var n int32

	testutil.AssertNoError(t, s.Schedule("job", "@hourly", counterFactory(&n)))

	tests := []struct {
		name    string
		id      string
		expr    string
		factory TaskFactory
	}{
		{"empty id", "", "@hourly", counterFactory(&n)},
		{"nil factory", "other", "@hourly", nil},
		{"bad expression", "other", "every now and then", counterFactory(&n)},
		{"duplicate id", "job", "@daily", counterFactory(&n)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Schedule(tt.id, tt.expr, tt.factory)
			if !gferrors.IsValidationError(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	testutil.AssertEqual(t, len(s.Entries()), 1)
}

func TestNextAndEntries(t *testing.T) {
	s := newScheduler(t, newPool(t, 1), Config{Location: time.UTC})
	var n int32

	testutil.AssertNoError(t, s.Schedule("b-hourly", "@hourly", counterFactory(&n)))
	testutil.AssertNoError(t, s.Schedule("a-daily", "0 0 * * *", counterFactory(&n)))

	before := time.Now()
	next, err := s.Next("b-hourly")
	testutil.AssertNoError(t, err)
	if !next.After(before) || next.After(before.Add(time.Hour)) {
		t.Errorf("next hourly firing %v not within the coming hour", next)
	}
	testutil.AssertEqual(t, next.Minute(), 0)

	_, err = s.Next("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entries := s.Entries()
	testutil.AssertEqual(t, len(entries), 2)
	testutil.AssertEqual(t, entries[0].ID, "a-daily")
	testutil.AssertEqual(t, entries[0].Expression, "0 0 * * *")
	testutil.AssertEqual(t, entries[1].ID, "b-hourly")
	testutil.AssertEqual(t, entries[1].Firings, uint64(0))

	testutil.AssertEqual(t, s.Remove("a-daily"), true)
	testutil.AssertEqual(t, s.Remove("a-daily"), false)
	testutil.AssertEqual(t, len(s.Entries()), 1)
}

func TestFiringsSubmitToPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool := newPool(t, 2)
	rejects := testutil.NewCallbackTracker()
	s := newScheduler(t, pool, Config{
		Name:     "ticker",
		Metrics:  metrics.Config{Enabled: true, Registry: reg},
		OnReject: func(string, error) { rejects.Mark() },
	})

	var ran int32
	testutil.AssertNoError(t, s.Schedule("tick", "* * * * * *", counterFactory(&ran)))
	testutil.AssertNoError(t, s.Start())
	testutil.AssertNoError(t, s.Start())

	testutil.Eventually(t, func() bool {
		return atomic.LoadInt32(&ran) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	entries := s.Entries()
	testutil.AssertEqual(t, len(entries), 1)
	if entries[0].Firings < 2 {
		t.Errorf("firings = %d, want >= 2", entries[0].Firings)
	}
	if entries[0].Prev.IsZero() {
		t.Error("expected Prev to be set after firing")
	}
	testutil.AssertEqual(t, entries[0].Rejected, uint64(0))
	rejects.AssertNotCalled(t)

	series, err := promtest.GatherAndCount(reg, "taskpool_scheduler_firings_total")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, series, 1)
}

func TestRejectedFiringsAreReported(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool := newPool(t, 1)

	// Take down the only worker.
	testutil.AssertNoError(t, pool.Work(taskpool.TaskFunc(func() { panic("boom") })))
	testutil.WaitClosed(t, pool.Done(), testutil.TestTimeout)

	rejects := testutil.NewCallbackTracker()
	s := newScheduler(t, pool, Config{
		Name:    "broken",
		Metrics: metrics.Config{Enabled: true, Registry: reg},
		OnReject: func(id string, err error) {
			rejects.Mark(err)
		},
	})

	var ran int32
	testutil.AssertNoError(t, s.Schedule("tick", "* * * * * *", counterFactory(&ran)))
	testutil.AssertNoError(t, s.Start())

	testutil.Eventually(t, rejects.Called, 5*time.Second, 10*time.Millisecond)

	err, _ := rejects.Value().(error)
	if !errors.Is(err, taskpool.ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	testutil.AssertEqual(t, atomic.LoadInt32(&ran), int32(0))

	entry := s.Entries()[0]
	if entry.Rejected == 0 {
		t.Error("expected rejected firings to be counted")
	}
	testutil.AssertEqual(t, entry.Firings, uint64(0))

	<-s.Stop()
	expected := `
# HELP taskpool_scheduler_rejected_total Total number of cron firings whose submission was refused
# TYPE taskpool_scheduler_rejected_total counter
taskpool_scheduler_rejected_total{entry="tick",scheduler="broken"} ` + strconv.FormatUint(s.Entries()[0].Rejected, 10) + `
`
	testutil.AssertNoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"taskpool_scheduler_rejected_total"))
}

func TestPoolAndSchedulerShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metricsConfig := metrics.Config{Enabled: true, Registry: reg}

	pool, err := taskpool.NewWithMetrics(taskpool.Config{Parallelism: 2, Logger: zaptest.NewLogger(t)}, "shared", metricsConfig)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		testutil.WaitClosed(t, pool.Close(), testutil.TestTimeout)
	})

	s := newScheduler(t, pool, Config{Name: "shared", Metrics: metricsConfig})

	var n int32
	testutil.AssertNoError(t, s.Schedule("hourly", "@hourly", counterFactory(&n)))
	testutil.AssertNoError(t, s.Schedule("daily", "@daily", counterFactory(&n)))

	expected := `
# HELP taskpool_pool_size Number of workers the pool was built with
# TYPE taskpool_pool_size gauge
taskpool_pool_size{pool="shared"} 2
# HELP taskpool_scheduler_firings_total Total number of cron firings that submitted a task
# TYPE taskpool_scheduler_firings_total counter
taskpool_scheduler_firings_total{entry="daily",scheduler="shared"} 0
taskpool_scheduler_firings_total{entry="hourly",scheduler="shared"} 0
`
	testutil.AssertNoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"taskpool_pool_size", "taskpool_scheduler_firings_total"))

	testutil.AssertEqual(t, s.Remove("daily"), true)
	series, err := promtest.GatherAndCount(reg, "taskpool_scheduler_firings_total", "taskpool_scheduler_rejected_total")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, series, 2)
}

func TestStopReleasesPoolHandle(t *testing.T) {
	pool, err := taskpool.New(taskpool.Config{Parallelism: 2})
	testutil.AssertNoError(t, err)

	s, err := New(pool, Config{})
	testutil.AssertNoError(t, err)

	pool.Close()
	select {
	case <-pool.Done():
		t.Fatal("pool stopped while the scheduler still held a handle")
	case <-time.After(20 * time.Millisecond):
	}

	testutil.WaitClosed(t, s.Stop(), testutil.TestTimeout)
	testutil.WaitClosed(t, pool.Done(), testutil.TestTimeout)

	// Stop is idempotent.
	testutil.WaitClosed(t, s.Stop(), testutil.TestTimeout)
}

func TestStoppedSchedulerRejectsWork(t *testing.T) {
	s := newScheduler(t, newPool(t, 1), Config{})
	<-s.Stop()

	var n int32
	err := s.Schedule("late", "@hourly", counterFactory(&n))
	if !errors.Is(err, gferrors.ErrClosed) {
		t.Fatalf("expected ErrClosed from Schedule, got %v", err)
	}

	err = s.Start()
	if !errors.Is(err, gferrors.ErrClosed) {
		t.Fatalf("expected ErrClosed from Start, got %v", err)
	}
}
