// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package layout

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sinkline/internal/event"
)

var fixedTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func testEvent() *event.LogEvent {
	return &event.LogEvent{
		Level:           event.Warn,
		LoggerName:      "db.pool",
		MessageTemplate: "slow query on %s",
		Message:         "slow query on users",
		Err:             errors.New("deadline exceeded"),
		Time:            fixedTime,
		Sequence:        42,
		Properties:      map[string]any{"table": "users", "ms": 250},
	}
}

func TestJSON_Render(t *testing.T) {
	t.Parallel()

	data, err := NewJSON("").Render(testEvent())
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}
	if strings.Contains(string(data), "\n") {
		t.Errorf("Render output contains a newline: %q", data)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	checks := map[string]any{
		"time":     "2026-03-14T15:09:26Z",
		"level":    "warn",
		"logger":   "db.pool",
		"message":  "slow query on users",
		"template": "slow query on %s",
		"error":    "deadline exceeded",
		"seq":      float64(42),
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("field %s = %v, want %v", k, got[k], want)
		}
	}
	props, ok := got["properties"].(map[string]any)
	if !ok || props["table"] != "users" {
		t.Errorf("properties = %v, want table=users", got["properties"])
	}
}

func TestJSON_OmitsTemplateEqualToMessage(t *testing.T) {
	t.Parallel()

	ev := &event.LogEvent{Level: event.Info, MessageTemplate: "ready", Message: "ready", Time: fixedTime}
	data, err := NewJSON("").Render(ev)
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}
	if strings.Contains(string(data), "template") {
		t.Errorf("Render = %s, want no template field", data)
	}
	if strings.Contains(string(data), "error") {
		t.Errorf("Render = %s, want no error field", data)
	}
}

func TestText_Render(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"default", "", "2026-03-14T15:09:26Z [WARN] db.pool: slow query on users"},
		{"seq and error", "#{seq} {message} ({error})", "#42 slow query on users (deadline exceeded)"},
		{"property", "{prop:table}/{prop:missing}", "users/"},
		{"template", "{template}", "slow query on %s"},
		{"literal only", "static", "static"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := NewText(tt.format, "")
			if err != nil {
				t.Fatalf("NewText(%q) error = %v", tt.format, err)
			}
			got, err := l.Render(testEvent())
			if err != nil {
				t.Fatalf("Render error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestText_Properties(t *testing.T) {
	t.Parallel()

	l, err := NewText("{properties}", "")
	if err != nil {
		t.Fatalf("NewText error = %v", err)
	}
	got, err := l.Render(testEvent())
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}
	var props map[string]any
	if err := json.Unmarshal(got, &props); err != nil {
		t.Fatalf("properties are not JSON: %v (%q)", err, got)
	}
	if props["table"] != "users" {
		t.Errorf("properties[table] = %v, want users", props["table"])
	}
}

func TestText_InvalidFormats(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"{nope}", "{message", "message}", "{prop:}", "a}{message}"} {
		if _, err := NewText(format, ""); err == nil {
			t.Errorf("NewText(%q) error = nil, want error", format)
		}
	}
}

func TestConsole_Render(t *testing.T) {
	t.Parallel()

	got, err := NewConsole(true, time.RFC3339).Render(testEvent())
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}
	line := string(got)
	for _, want := range []string{"WRN", "slow query on users", "deadline exceeded", "logger=db.pool"} {
		if !strings.Contains(line, want) {
			t.Errorf("Render = %q, want it to contain %q", line, want)
		}
	}
	if strings.Contains(line, "seq=") {
		t.Errorf("Render = %q, want seq excluded", line)
	}
	if strings.HasSuffix(line, "\n") {
		t.Errorf("Render = %q, want no trailing newline", line)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Type: "json"}, false},
		{Config{Type: "TEXT", Format: "{message}"}, false},
		{Config{Type: "console", NoColor: true}, false},
		{Config{Type: "text", Format: "{bogus}"}, true},
		{Config{Type: "xml"}, true},
	}
	for _, tt := range tests {
		_, err := New(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
		}
	}
}
