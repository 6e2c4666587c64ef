// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sinks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/layout"
	"github.com/tomtom215/sinkline/internal/sink"
)

// ConsoleConfig configures a Console sink.
type ConsoleConfig struct {
	// Stream is stdout or stderr.
	Stream string        `koanf:"stream" validate:"omitempty,oneof=stdout stderr"`
	Layout layout.Config `koanf:"layout"`
}

// DefaultConsoleConfig writes the console layout to stdout.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{Stream: "stdout"}
}

// Console writes one rendered line per event.
type Console struct {
	*sink.Base

	out    io.Writer
	layout layout.Layout
	buf    bytes.Buffer
}

// NewConsole creates a console sink on stdout or stderr.
func NewConsole(name string, cfg ConsoleConfig) (*Console, error) {
	var out io.Writer
	switch cfg.Stream {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		return nil, fmt.Errorf("console sink %q: unknown stream %q", name, cfg.Stream)
	}
	l, err := newLayout(cfg.Layout, layout.TypeConsole)
	if err != nil {
		return nil, err
	}
	return NewWriter(name, out, l), nil
}

// NewWriter creates a console sink on an arbitrary writer.
func NewWriter(name string, out io.Writer, l layout.Layout) *Console {
	c := &Console{out: out, layout: l}
	c.Base = sink.NewBase(name, c)
	return c
}

func (c *Console) InitializeSink(_ context.Context) error { return nil }

func (c *Console) WriteItem(item sink.Item) {
	c.WriteItems([]sink.Item{item})
}

// WriteItems renders the batch into one buffer and issues a single write.
func (c *Console) WriteItems(items []sink.Item) {
	c.buf.Reset()
	rendered := items[:0:0]
	for _, it := range items {
		line, err := c.layout.Render(it.Event)
		if err != nil {
			it.Complete(err)
			continue
		}
		c.buf.Write(line)
		c.buf.WriteByte('\n')
		rendered = append(rendered, it)
	}
	if len(rendered) == 0 {
		return
	}
	_, err := c.out.Write(c.buf.Bytes())
	sink.CompleteAll(rendered, err)
}

func (c *Console) FlushSink(done async.Continuation) { done.Complete(nil) }

func (c *Console) CloseSink() error { return nil }
