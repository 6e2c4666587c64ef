// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package event defines the log event record that flows through the
// dispatch pipeline.
//
// A LogEvent is created once per log call by the runtime and is read by
// every sink in the chain. Wrappers may attach or replace the completion
// continuation that travels with an event, but they never modify the event
// itself.
package event

import (
	"fmt"
	"maps"
	"strings"
	"sync/atomic"
	"time"
)

// Level is the severity of a log event.
type Level int

// Severity levels from most to least verbose. Off is only meaningful as a
// minimum level and disables logging entirely.
const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	Fatal
	Off
)

var levelNames = [...]string{"trace", "debug", "info", "warn", "error", "fatal", "off"}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < Trace || l > Off {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name to a Level. Matching is case-insensitive
// and accepts "warning" as an alias of "warn".
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return Warn, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// LogEvent is a single log record.
//
// Fields must not be modified once the event has been handed to a sink.
// Properties is copied at construction so the caller's map can be reused.
type LogEvent struct {
	Level           Level          `json:"level"`
	LoggerName      string         `json:"logger"`
	MessageTemplate string         `json:"template,omitempty"`
	Message         string         `json:"message"`
	Err             error          `json:"-"`
	Time            time.Time      `json:"time"`
	Sequence        uint64         `json:"seq"`
	Properties      map[string]any `json:"properties,omitempty"`
}

// ErrorText returns the error message or an empty string.
func (e *LogEvent) ErrorText() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Property returns a property value and whether it was set.
func (e *LogEvent) Property(key string) (any, bool) {
	if e == nil || e.Properties == nil {
		return nil, false
	}
	v, ok := e.Properties[key]
	return v, ok
}

// Sequencer hands out monotonically increasing sequence ids. Each runtime
// owns its own Sequencer; there is no process-wide counter.
type Sequencer struct {
	last atomic.Uint64
	now  func() time.Time
}

// NewSequencer creates a sequencer stamping events with the wall clock.
func NewSequencer() *Sequencer {
	return &Sequencer{now: time.Now}
}

// Next returns the next sequence id. The first id is 1.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently issued sequence id.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}

// New creates an event. When args are given the message is formatted from
// the template with fmt.Sprintf, otherwise the template is the message.
func (s *Sequencer) New(level Level, logger, template string, args ...any) *LogEvent {
	msg := template
	if len(args) > 0 {
		msg = fmt.Sprintf(template, args...)
	}
	return s.build(level, logger, template, msg)
}

// NewMessage creates an event whose message is msg taken verbatim. Use it
// for text that did not come from a format string, such as ingested lines.
func (s *Sequencer) NewMessage(level Level, logger, msg string) *LogEvent {
	return s.build(level, logger, msg, msg)
}

// NewMessageWith is NewMessage with an error and a copy of props attached.
func (s *Sequencer) NewMessageWith(level Level, logger string, err error, props map[string]any, msg string) *LogEvent {
	return attach(s.build(level, logger, msg, msg), err, props)
}

func (s *Sequencer) build(level Level, logger, template, msg string) *LogEvent {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return &LogEvent{
		Level:           level,
		LoggerName:      logger,
		MessageTemplate: template,
		Message:         msg,
		Time:            now(),
		Sequence:        s.Next(),
	}
}

func attach(ev *LogEvent, err error, props map[string]any) *LogEvent {
	ev.Err = err
	if len(props) > 0 {
		ev.Properties = maps.Clone(props)
	}
	return ev
}

// NewWith creates an event carrying an error and a copy of props.
func (s *Sequencer) NewWith(level Level, logger string, err error, props map[string]any, template string, args ...any) *LogEvent {
	return attach(s.New(level, logger, template, args...), err, props)
}
