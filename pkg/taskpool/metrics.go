package taskpool

import (
	"strconv"
	"time"

	"github.com/vnykmshr/taskpool/pkg/metrics"
)

// NewWithMetrics creates a pool whose dispatch and worker events are
// recorded in Prometheus under the given name.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (*Handle, error) {
	config.Name = name
	return newPool(config, metricsConfig.Resolve())
}

// instruments records pool events. A nil registry makes every method a no-op.
type instruments struct {
	registry *metrics.Registry
	name     string
}

func newInstruments(registry *metrics.Registry, name string) *instruments {
	return &instruments{registry: registry, name: name}
}

func (i *instruments) enabled() bool {
	return i.registry != nil
}

func (i *instruments) started(parallel int) {
	if !i.enabled() {
		return
	}
	i.registry.PoolSize.WithLabelValues(i.name).Set(float64(parallel))
	i.registry.WorkersLive.WithLabelValues(i.name).Set(float64(parallel))
}

func (i *instruments) submitted(worker int) {
	if !i.enabled() {
		return
	}
	i.registry.TasksSubmitted.WithLabelValues(i.name, strconv.Itoa(worker)).Inc()
}

func (i *instruments) rejected(worker int) {
	if !i.enabled() {
		return
	}
	i.registry.TasksRejected.WithLabelValues(i.name, strconv.Itoa(worker)).Inc()
}

func (i *instruments) executed(worker int, d time.Duration) {
	if !i.enabled() {
		return
	}
	i.registry.TasksExecuted.WithLabelValues(i.name, strconv.Itoa(worker)).Inc()
	i.registry.TaskDuration.WithLabelValues(i.name).Observe(d.Seconds())
}

func (i *instruments) panicked(worker int) {
	if !i.enabled() {
		return
	}
	i.registry.TasksPanicked.WithLabelValues(i.name, strconv.Itoa(worker)).Inc()
}

func (i *instruments) discarded(worker, n int) {
	if !i.enabled() {
		return
	}
	i.registry.TasksDiscarded.WithLabelValues(i.name, strconv.Itoa(worker)).Add(float64(n))
}

func (i *instruments) workerExited(live int) {
	if !i.enabled() {
		return
	}
	i.registry.WorkersLive.WithLabelValues(i.name).Set(float64(live))
}
