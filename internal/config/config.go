// Package config loads the taskpool command configuration from flags and
// TASKPOOL_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
	"github.com/vnykmshr/taskpool/pkg/common/validation"
)

const module = "config"

// EnvPrefix is prepended to every environment variable, so --task-duration
// is read from TASKPOOL_TASK_DURATION.
const EnvPrefix = "TASKPOOL"

// Config holds the settings of a `taskpool run` invocation.
type Config struct {
	Name           string
	Tasks          int
	Parallelism    int
	QueueCapacity  int
	TaskDuration   time.Duration
	PanicEvery     int
	Heartbeat      string
	MetricsAddr    string
	LogLevel       string
	LogDevelopment bool
}

// RegisterFlags defines every configuration flag on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("name", "taskpool", "pool name used in logs and metrics")
	fs.Int("tasks", 100, "number of tasks to submit")
	fs.Int("parallelism", 0, "number of workers (0 = host parallelism)")
	fs.Int("queue-capacity", 0, "per-worker mailbox bound (0 = unbounded)")
	fs.Duration("task-duration", 10*time.Millisecond, "how long each task sleeps")
	fs.Int("panic-every", 0, "make every n-th task panic (0 = never)")
	fs.String("heartbeat", "", "cron expression for periodic heartbeat tasks, e.g. \"@every 1s\"")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. \":9090\"")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Bool("log-development", false, "human-readable console logs")
}

// Load resolves the configuration. Explicitly set flags win over
// environment variables, which win over flag defaults.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, gferrors.NewOperationError(module, "Load", err)
	}

	cfg := Config{
		Name:           v.GetString("name"),
		Tasks:          v.GetInt("tasks"),
		Parallelism:    v.GetInt("parallelism"),
		QueueCapacity:  v.GetInt("queue-capacity"),
		TaskDuration:   v.GetDuration("task-duration"),
		PanicEvery:     v.GetInt("panic-every"),
		Heartbeat:      v.GetString("heartbeat"),
		MetricsAddr:    v.GetString("metrics-addr"),
		LogLevel:       v.GetString("log-level"),
		LogDevelopment: v.GetBool("log-development"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if err := validation.ValidateNotEmpty(module, "name", c.Name); err != nil {
		return err
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"tasks", c.Tasks},
		{"parallelism", c.Parallelism},
		{"queue-capacity", c.QueueCapacity},
		{"panic-every", c.PanicEvery},
	} {
		if err := validation.ValidateNonNegative(module, f.name, f.value); err != nil {
			return err
		}
	}
	if c.TaskDuration < 0 {
		return gferrors.NewValidationError(module, "task-duration", c.TaskDuration, "cannot be negative")
	}
	return nil
}
