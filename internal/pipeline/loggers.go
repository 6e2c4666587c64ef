// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package pipeline

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/sinkline/internal/event"
)

// ErrRegistryBound is returned when a LoggerRegistry is handed to a second
// runtime.
var ErrRegistryBound = errors.New("pipeline: logger registry already bound to a runtime")

// LoggerRegistry hands out one Logger per name. A registry serves exactly
// one Runtime: it is created by the caller, passed to New, and lives as
// long as that runtime. Loggers must not be used before New returns.
// Loggers stay valid across reconfigurations and report ErrClosed after
// the runtime is closed.
type LoggerRegistry struct {
	mu      sync.Mutex
	rt      *Runtime
	loggers map[string]*Logger
}

// NewLoggerRegistry creates an empty registry.
func NewLoggerRegistry() *LoggerRegistry {
	return &LoggerRegistry{loggers: make(map[string]*Logger)}
}

func (lr *LoggerRegistry) bind(rt *Runtime) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.rt != nil {
		return ErrRegistryBound
	}
	lr.rt = rt
	for _, l := range lr.loggers {
		l.rt = rt
	}
	return nil
}

// unbind releases the registry after a runtime failed to start.
func (lr *LoggerRegistry) unbind(rt *Runtime) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.rt == rt {
		lr.rt = nil
	}
}

// Get returns the logger called name, creating it on first use.
func (lr *LoggerRegistry) Get(name string) *Logger {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if l, ok := lr.loggers[name]; ok {
		return l
	}
	l := &Logger{name: name, rt: lr.rt}
	lr.loggers[name] = l
	return l
}

// Names returns the names of all loggers created so far, sorted.
func (lr *LoggerRegistry) Names() []string {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of loggers.
func (lr *LoggerRegistry) Len() int {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return len(lr.loggers)
}

// resolved caches the routes matching a logger for one routing snapshot.
type resolved struct {
	routing *routing
	routes  []*route
}

// Logger writes events under a fixed name. It caches the rules matching
// its name and refreshes them when the runtime is reconfigured.
type Logger struct {
	name  string
	rt    *Runtime
	cache atomic.Pointer[resolved]
}

// Name returns the logger name.
func (l *Logger) Name() string { return l.name }

// routesFor returns the matching routes for the current snapshot.
func (l *Logger) routesFor(rt *routing) []*route {
	if c := l.cache.Load(); c != nil && c.routing == rt {
		return c.routes
	}
	c := &resolved{routing: rt, routes: rt.matchRoutes(l.name)}
	l.cache.Store(c)
	return c.routes
}

// Enabled reports whether an event at level would reach any sink.
func (l *Logger) Enabled(level event.Level) bool {
	rt := l.rt.snapshot()
	if rt == nil {
		return false
	}
	return len(targets(l.routesFor(rt), level)) > 0
}

// Log formats and writes an event. The returned error is non-nil only when
// the runtime is closed or, with ThrowOnFailure set, when delivery failed
// before Log returned.
func (l *Logger) Log(level event.Level, template string, args ...any) error {
	if !l.Enabled(level) {
		return l.rt.closedErr()
	}
	return l.rt.dispatch(l, l.rt.seq.New(level, l.name, template, args...))
}

// LogMessage writes an event with msg as its message, without formatting.
func (l *Logger) LogMessage(level event.Level, msg string) error {
	if !l.Enabled(level) {
		return l.rt.closedErr()
	}
	return l.rt.dispatch(l, l.rt.seq.NewMessage(level, l.name, msg))
}

// LogWith is Log with an error and properties attached to the event.
func (l *Logger) LogWith(level event.Level, err error, props map[string]any, template string, args ...any) error {
	if !l.Enabled(level) {
		return l.rt.closedErr()
	}
	return l.rt.dispatch(l, l.rt.seq.NewWith(level, l.name, err, props, template, args...))
}
