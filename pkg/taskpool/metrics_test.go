package taskpool

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/taskpool/internal/testutil"
	"github.com/vnykmshr/taskpool/pkg/metrics"
)

func TestNewWithMetricsRecordsDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool, err := NewWithMetrics(Config{Parallelism: 2}, "orders", metrics.Config{Enabled: true, Registry: reg})
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { testutil.WaitClosed(t, pool.Close(), testutil.TestTimeout) })

	var ran int32
	testutil.AssertNoError(t, pool.Work(&recordTask{id: 0, panics: true}))
	testutil.AssertNoError(t, pool.Work(&recordTask{id: 1, ran: &ran}))
	testutil.WaitForInt32(t, &ran, 1, testutil.TestTimeout)
	testutil.AssertEventually(t, func() bool { return pool.LiveWorkers() == 1 })

	err = pool.Work(&recordTask{id: 2})
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}

	expected := `
# HELP taskpool_pool_size Number of workers the pool was built with
# TYPE taskpool_pool_size gauge
taskpool_pool_size{pool="orders"} 2
# HELP taskpool_pool_workers_live Number of workers that have not terminated
# TYPE taskpool_pool_workers_live gauge
taskpool_pool_workers_live{pool="orders"} 1
# HELP taskpool_pool_tasks_submitted_total Total number of tasks enqueued on a worker
# TYPE taskpool_pool_tasks_submitted_total counter
taskpool_pool_tasks_submitted_total{pool="orders",worker="0"} 1
taskpool_pool_tasks_submitted_total{pool="orders",worker="1"} 1
# HELP taskpool_pool_tasks_rejected_total Total number of submissions refused because the target worker was gone
# TYPE taskpool_pool_tasks_rejected_total counter
taskpool_pool_tasks_rejected_total{pool="orders",worker="0"} 1
# HELP taskpool_pool_tasks_panicked_total Total number of tasks that panicked and took their worker down
# TYPE taskpool_pool_tasks_panicked_total counter
taskpool_pool_tasks_panicked_total{pool="orders",worker="0"} 1
`
	err = promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"taskpool_pool_size",
		"taskpool_pool_workers_live",
		"taskpool_pool_tasks_submitted_total",
		"taskpool_pool_tasks_rejected_total",
		"taskpool_pool_tasks_panicked_total",
	)
	testutil.AssertNoError(t, err)

	executed := pool.ref.state.inst.registry.TasksExecuted.WithLabelValues("orders", "1")
	testutil.AssertEventually(t, func() bool {
		return promtest.ToFloat64(executed) == 1
	})
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	pool, err := NewWithMetrics(Config{Parallelism: 1}, "quiet", metrics.Config{Enabled: false})
	testutil.AssertNoError(t, err)

	var ran int32
	testutil.AssertNoError(t, pool.Work(TaskFunc(func() { atomic.AddInt32(&ran, 1) })))
	testutil.WaitForInt32(t, &ran, 1, testutil.TestTimeout)
	testutil.WaitClosed(t, pool.Close(), testutil.TestTimeout)
}

func TestDiscardedTasksAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	pool, err := NewWithMetrics(Config{Parallelism: 1}, "drop", metrics.Config{Enabled: true, Registry: reg})
	testutil.AssertNoError(t, err)
	defer pool.Close()

	gate := testutil.NewGate()
	var started atomic.Bool
	testutil.AssertNoError(t, pool.Work(&recordTask{id: 0, gate: gate, started: &started, panics: true}))
	testutil.AssertEventually(t, started.Load)
	testutil.AssertNoError(t, pool.Work(&recordTask{id: 1}))
	testutil.AssertNoError(t, pool.Work(&recordTask{id: 2}))
	gate.Open()

	testutil.WaitClosed(t, pool.Done(), testutil.TestTimeout)

	expected := `
# HELP taskpool_pool_tasks_discarded_total Total number of queued tasks dropped when their worker terminated
# TYPE taskpool_pool_tasks_discarded_total counter
taskpool_pool_tasks_discarded_total{pool="drop",worker="0"} 2
`
	testutil.AssertNoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"taskpool_pool_tasks_discarded_total"))
}

func TestPanicIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pool, err := New(Config{Name: "logged", Parallelism: 1, Logger: zap.New(core)})
	testutil.AssertNoError(t, err)
	defer pool.Close()

	testutil.AssertNoError(t, pool.Work(&recordTask{id: 0, panics: true}))
	testutil.WaitClosed(t, pool.Done(), testutil.TestTimeout)

	testutil.AssertEqual(t, logs.FilterMessage("pool started").Len(), 1)

	panics := logs.FilterMessage("task panicked, worker terminating").AllUntimed()
	testutil.AssertEqual(t, len(panics), 1)

	entry := panics[0]
	testutil.AssertEqual(t, entry.Level, zapcore.ErrorLevel)
	testutil.AssertEqual(t, entry.LoggerName, "taskpool")

	fields := entry.ContextMap()
	testutil.AssertEqual(t, fields["pool"], interface{}("logged"))
	testutil.AssertEqual(t, fields["worker"], interface{}(int64(0)))
	testutil.AssertEqual(t, fields["panic"], interface{}("boom"))
}

func TestPoolsShareRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	metricsConfig := metrics.Config{Enabled: true, Registry: reg}

	for _, name := range []string{"ingest", "export"} {
		pool, err := NewWithMetrics(Config{Parallelism: 1}, name, metricsConfig)
		testutil.AssertNoError(t, err)
		t.Cleanup(func() { testutil.WaitClosed(t, pool.Close(), testutil.TestTimeout) })
	}

	expected := `
# HELP taskpool_pool_size Number of workers the pool was built with
# TYPE taskpool_pool_size gauge
taskpool_pool_size{pool="export"} 1
taskpool_pool_size{pool="ingest"} 1
`
	testutil.AssertNoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "taskpool_pool_size"))
}
