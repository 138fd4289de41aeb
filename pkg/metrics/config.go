package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registerer to use. If nil, DefaultRegistry
	// (backed by prometheus.DefaultRegisterer) is used.
	Registry prometheus.Registerer
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Registry: prometheus.DefaultRegisterer,
	}
}

var (
	resolvedMu sync.Mutex
	resolved   = make(map[prometheus.Registerer]*Registry)
)

// Resolve returns the Registry described by the config, or nil when metrics
// are disabled. A nil Registerer or prometheus.DefaultRegisterer maps to
// DefaultRegistry. Any other registerer gets one Registry, shared by every
// component resolved against it, so pools and schedulers can report into
// the same registerer.
func (c Config) Resolve() *Registry {
	if !c.Enabled {
		return nil
	}
	if c.Registry == nil || c.Registry == prometheus.DefaultRegisterer {
		return DefaultRegistry
	}

	resolvedMu.Lock()
	defer resolvedMu.Unlock()

	r, ok := resolved[c.Registry]
	if !ok {
		r = NewRegistry(c.Registry)
		resolved[c.Registry] = r
	}
	return r
}
