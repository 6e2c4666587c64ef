// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package sinks provides the concrete destinations at the leaves of a
// dispatch pipeline:
//
//   - Memory keeps the most recent rendered lines, mainly for tests and
//     the admin API
//   - Null accepts and counts events
//   - Console writes rendered lines to stdout, stderr or any io.Writer
//   - File appends JSON lines to a file and fsyncs on flush
//   - Spool persists events in BadgerDB for later replay
//   - Publish sends one Watermill message per event, over NATS when a URL
//     is configured
//
// All of them embed *sink.Base and therefore follow the lifecycle contract
// of package sink.
package sinks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/layout"
	"github.com/tomtom215/sinkline/internal/sink"
)

// newLayout builds cfg, falling back to fallback when no type is set.
func newLayout(cfg layout.Config, fallback string) (layout.Layout, error) {
	if cfg.Type == "" {
		cfg.Type = fallback
	}
	return layout.New(cfg)
}

// MemoryConfig configures a Memory sink.
type MemoryConfig struct {
	// MaxLines bounds the retained lines. Zero keeps everything.
	MaxLines int           `koanf:"max_lines" validate:"gte=0"`
	Layout   layout.Config `koanf:"layout"`
}

// DefaultMemoryConfig keeps the last 1000 lines rendered as text.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{MaxLines: 1000}
}

// Memory retains rendered events in memory.
type Memory struct {
	*sink.Base

	layout   layout.Layout
	maxLines int

	mu    sync.Mutex
	lines []string
}

// NewMemory creates a memory sink.
func NewMemory(name string, cfg MemoryConfig) (*Memory, error) {
	l, err := newLayout(cfg.Layout, layout.TypeText)
	if err != nil {
		return nil, err
	}
	m := &Memory{layout: l, maxLines: cfg.MaxLines}
	m.Base = sink.NewBase(name, m)
	return m, nil
}

// Lines returns a copy of the retained lines, oldest first.
func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Reset discards the retained lines.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.lines = nil
	m.mu.Unlock()
}

func (m *Memory) InitializeSink(_ context.Context) error { return nil }

func (m *Memory) WriteItem(item sink.Item) {
	line, err := m.layout.Render(item.Event)
	if err != nil {
		item.Complete(err)
		return
	}
	m.mu.Lock()
	m.lines = append(m.lines, string(line))
	if m.maxLines > 0 && len(m.lines) > m.maxLines {
		m.lines = append(m.lines[:0], m.lines[len(m.lines)-m.maxLines:]...)
	}
	m.mu.Unlock()
	item.Complete(nil)
}

func (m *Memory) FlushSink(done async.Continuation) { done.Complete(nil) }

func (m *Memory) CloseSink() error { return nil }

// Null discards every event.
type Null struct {
	*sink.Base
	count atomic.Uint64
}

// NewNull creates a null sink.
func NewNull(name string) *Null {
	n := &Null{}
	n.Base = sink.NewBase(name, n)
	return n
}

// Count returns the number of events accepted.
func (n *Null) Count() uint64 { return n.count.Load() }

func (n *Null) InitializeSink(_ context.Context) error { return nil }

func (n *Null) WriteItem(item sink.Item) {
	n.count.Add(1)
	item.Complete(nil)
}

func (n *Null) FlushSink(done async.Continuation) { done.Complete(nil) }

func (n *Null) CloseSink() error { return nil }
