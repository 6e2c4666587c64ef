// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package layout renders log events into bytes for the concrete sinks.
//
// Three layouts are provided:
//   - JSON: one object per event, encoded with goccy/go-json
//   - Text: a placeholder template such as "{time} [{level}] {message}"
//   - Console: the human readable zerolog console format
//
// Rendered output never carries a trailing newline; line oriented sinks
// add their own separator.
package layout

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sinkline/internal/event"
)

// Layout types accepted by New.
const (
	TypeJSON    = "json"
	TypeText    = "text"
	TypeConsole = "console"
)

// DefaultTextFormat is used by the text layout when no format is set.
const DefaultTextFormat = "{time} [{level}] {logger}: {message}"

// Layout renders one event.
type Layout interface {
	Render(ev *event.LogEvent) ([]byte, error)
}

// Config selects and tunes a layout.
type Config struct {
	Type       string `koanf:"type" validate:"omitempty,oneof=json text console"`
	Format     string `koanf:"format"`
	NoColor    bool   `koanf:"no_color"`
	TimeFormat string `koanf:"time_format"`
}

// New builds the layout described by cfg. An empty type selects JSON.
func New(cfg Config) (Layout, error) {
	switch strings.ToLower(cfg.Type) {
	case "", TypeJSON:
		return NewJSON(cfg.TimeFormat), nil
	case TypeText:
		return NewText(cfg.Format, cfg.TimeFormat)
	case TypeConsole:
		return NewConsole(cfg.NoColor, cfg.TimeFormat), nil
	default:
		return nil, fmt.Errorf("unknown layout type %q", cfg.Type)
	}
}

// record is the wire shape of an event.
type record struct {
	Time       string         `json:"time"`
	Level      string         `json:"level"`
	Logger     string         `json:"logger,omitempty"`
	Message    string         `json:"message"`
	Template   string         `json:"template,omitempty"`
	Error      string         `json:"error,omitempty"`
	Seq        uint64         `json:"seq"`
	Properties map[string]any `json:"properties,omitempty"`
}

// JSON renders events as single line JSON objects.
type JSON struct {
	timeFormat string
}

// NewJSON creates a JSON layout. An empty timeFormat means RFC 3339 with
// nanoseconds.
func NewJSON(timeFormat string) *JSON {
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	return &JSON{timeFormat: timeFormat}
}

// Render implements Layout.
func (j *JSON) Render(ev *event.LogEvent) ([]byte, error) {
	rec := record{
		Time:       ev.Time.Format(j.timeFormat),
		Level:      ev.Level.String(),
		Logger:     ev.LoggerName,
		Message:    ev.Message,
		Error:      ev.ErrorText(),
		Seq:        ev.Sequence,
		Properties: ev.Properties,
	}
	if ev.MessageTemplate != ev.Message {
		rec.Template = ev.MessageTemplate
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal event %d: %w", ev.Sequence, err)
	}
	return data, nil
}

// Console renders events in zerolog's console format.
type Console struct {
	json    *JSON
	noColor bool
	timeFmt string
}

// NewConsole creates a console layout.
func NewConsole(noColor bool, timeFormat string) *Console {
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	return &Console{
		json:    NewJSON(time.RFC3339Nano),
		noColor: noColor,
		timeFmt: timeFormat,
	}
}

// Render implements Layout.
func (c *Console) Render(ev *event.LogEvent) ([]byte, error) {
	data, err := c.json.Render(ev)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := zerolog.ConsoleWriter{
		Out:           &buf,
		NoColor:       c.noColor,
		TimeFormat:    c.timeFmt,
		FieldsExclude: []string{"seq", "template"},
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("format console event %d: %w", ev.Sequence, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
