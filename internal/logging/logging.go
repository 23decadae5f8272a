// Package logging builds the shared zap loggers. Only the command layer
// and long-running subsystems (watcher, history store) log; the parsing
// and validation engines stay silent and return data.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the root logger: structured JSON on stderr with ISO8601
// timestamps. Verbose switches to the development encoder at debug level.
func Init(verbose bool) (*zap.Logger, error) {
	if verbose {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return config.Build()
	}

	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}

// Named returns a child logger tagged with a subsystem name ("scanner",
// "watch", "history", ...). A nil parent yields the no-op logger so
// callers never need to guard their log sites.
func Named(parent *zap.Logger, component string) *zap.Logger {
	if parent == nil {
		return zap.NewNop()
	}
	return parent.Named(component)
}
