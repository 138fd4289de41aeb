package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vnykmshr/taskpool/internal/config"
	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/scheduler"
	"github.com/vnykmshr/taskpool/pkg/taskpool"
)

// distribution counts started tasks per worker.
type distribution struct {
	mu      sync.Mutex
	started map[int]int
	exited  map[int]interface{}
}

func newDistribution() *distribution {
	return &distribution{started: make(map[int]int), exited: make(map[int]interface{})}
}

func (d *distribution) taskStarted(worker int, _ taskpool.Task) {
	d.mu.Lock()
	d.started[worker]++
	d.mu.Unlock()
}

func (d *distribution) workerExited(worker int, recovered interface{}) {
	d.mu.Lock()
	d.exited[worker] = recovered
	d.mu.Unlock()
}

// summary is the result of one run.
type summary struct {
	Submitted int
	Rejected  int
	Started   map[int]int
	Crashed   map[int]interface{}
	Size      int
	Elapsed   time.Duration
}

// sleepTask is one unit of synthetic load.
type sleepTask struct {
	id       int
	duration time.Duration
	panics   bool
}

func (t sleepTask) Run() {
	time.Sleep(t.duration)
	if t.panics {
		panic(fmt.Sprintf("task %d failed on purpose", t.id))
	}
}

// newRegistry returns the registry a run reports into, with the Go runtime
// and process collectors alongside the pool and scheduler metrics.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func runLoad(ctx context.Context, cfg config.Config, logger *zap.Logger, reg *prometheus.Registry, out io.Writer) error {
	metricsConfig := metrics.Config{Enabled: true, Registry: reg}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dist := newDistribution()
	pool, err := taskpool.NewWithMetrics(taskpool.Config{
		Parallelism:   cfg.Parallelism,
		QueueCapacity: cfg.QueueCapacity,
		Logger:        logger,
		OnTaskStart:   dist.taskStarted,
		OnWorkerExit:  dist.workerExited,
	}, cfg.Name, metricsConfig)
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if cfg.Heartbeat != "" {
		sched, err = startHeartbeat(pool, cfg, logger, metricsConfig)
		if err != nil {
			<-pool.Close()
			return err
		}
	}

	res, err := submit(ctx, pool, cfg, logger)
	if sched != nil {
		<-sched.Stop()
	}

	select {
	case <-pool.Close():
	case <-ctx.Done():
		logger.Warn("interrupted before the workers drained")
	}
	if err != nil {
		return err
	}

	dist.mu.Lock()
	res.Started = dist.started
	res.Crashed = dist.exited
	dist.mu.Unlock()
	res.Size = pool.Size()

	printSummary(out, res)
	return nil
}

func submit(ctx context.Context, pool *taskpool.Handle, cfg config.Config, logger *zap.Logger) (summary, error) {
	res := summary{}
	start := time.Now()

	for i := 0; i < cfg.Tasks; i++ {
		task := sleepTask{
			id:       i,
			duration: cfg.TaskDuration,
			panics:   cfg.PanicEvery > 0 && (i+1)%cfg.PanicEvery == 0,
		}

		err := pool.WorkContext(ctx, task)
		if err == nil {
			res.Submitted++
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Elapsed = time.Since(start)
			return res, err
		}

		res.Rejected++
		var serr *taskpool.SendError
		if errors.As(err, &serr) {
			logger.Debug("task rejected", zap.Int("task", i), zap.Int("worker", serr.Worker), zap.Error(serr.Err))
		}
	}

	res.Elapsed = time.Since(start)
	logger.Info("submission finished",
		zap.Int("submitted", res.Submitted),
		zap.Int("rejected", res.Rejected),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func startHeartbeat(pool *taskpool.Handle, cfg config.Config, logger *zap.Logger, metricsConfig metrics.Config) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(pool, scheduler.Config{
		Name:    cfg.Name,
		Logger:  logger,
		Metrics: metricsConfig,
	})
	if err != nil {
		return nil, err
	}

	err = sched.Schedule("heartbeat", cfg.Heartbeat, func() taskpool.Task {
		return taskpool.TaskFunc(func() {
			logger.Info("heartbeat", zap.Int("live_workers", pool.LiveWorkers()))
		})
	})
	if err != nil {
		<-sched.Stop()
		return nil, err
	}
	if err := sched.Start(); err != nil {
		<-sched.Stop()
		return nil, err
	}
	return sched, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func printSummary(out io.Writer, res summary) {
	fmt.Fprintf(out, "submitted %d, rejected %d in %s\n", res.Submitted, res.Rejected, res.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tSTARTED\tSTATUS")

	for w := 0; w < res.Size; w++ {
		status := "ok"
		if r, ok := res.Crashed[w]; ok && r != nil {
			status = fmt.Sprintf("crashed: %v", r)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\n", w, res.Started[w], status)
	}
	_ = tw.Flush()
}
