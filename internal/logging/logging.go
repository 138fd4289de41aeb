// Package logging builds the zap loggers used by the taskpool binaries.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	gferrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

// New returns a logger at the given level. Development loggers write
// human-readable console output; production loggers write JSON.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, gferrors.NewValidationError("logging", "level", level, "unknown level").
			WithHint("use debug, info, warn or error")
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, gferrors.NewOperationError("logging", "New", err)
	}
	return logger, nil
}

// Install builds a logger with New and makes it the zap global, returning a
// function that flushes and restores the previous global.
func Install(level string, development bool) (*zap.Logger, func(), error) {
	logger, err := New(level, development)
	if err != nil {
		return nil, nil, err
	}
	restore := zap.ReplaceGlobals(logger)
	return logger, func() {
		_ = logger.Sync()
		restore()
	}, nil
}
