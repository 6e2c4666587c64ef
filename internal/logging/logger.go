// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package logging is the diagnostic channel of the dispatch runtime.
//
// Operational warnings (queue overflow, retry attempts, background loop
// faults, duplicate continuations) are written here through a zerolog
// logger. The channel is deliberately separate from the pipeline it
// observes: nothing logged here is ever routed back into a sink, so a
// failing sink cannot recurse into itself.
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	logging.Warn().Str("sink", name).Int("attempt", 2).Msg("write failed, retrying")
//
// Components that report on behalf of a sink should use ForSink so every
// line carries the sink name:
//
//	log := logging.ForSink("file-main")
//	log.Error().Err(err).Msg("fsync failed")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds diagnostic channel configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, disabled.
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is json or console.
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`

	// Caller includes file:line of the call site.
	Caller bool `koanf:"caller"`

	// Timestamp adds a time field to every line.
	Timestamp bool `koanf:"timestamp"`

	// Output defaults to os.Stderr. Stdout is left to console sinks.
	Output io.Writer `koanf:"-"`
}

// DefaultConfig returns the default diagnostic channel configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // the channel must work before Init is called
func init() {
	initLogger(DefaultConfig())
}

// Init configures the global diagnostic logger. It is safe to call again
// to reconfigure, for example after a configuration reload.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger must be called with mu held.
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05.000",
		}
	}

	ctx := zerolog.New(output).With().Str("channel", "diagnostic")
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	log = ctx.Logger()
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map
// to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global diagnostic logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global diagnostic logger. Tests use it to capture
// output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With creates a child logger context.
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// ForSink returns a child logger tagged with the sink name.
func ForSink(name string) zerolog.Logger {
	return With().Str("sink", name).Logger()
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return With().Str("component", name).Logger()
}

// Trace starts a message at trace level.
func Trace() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Trace()
}

// Debug starts a message at debug level.
func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

// Info starts a message at info level.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a message at warning level.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts a message at error level.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Fatal starts a message at fatal level; os.Exit(1) follows the write.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}

// Err starts an error-level message carrying err.
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}

// SetLevelString updates the global level from a level name.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// NewTestLogger creates a JSON logger writing to w.
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
