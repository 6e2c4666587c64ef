// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"time"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// BufferingConfig configures a Buffering wrapper.
type BufferingConfig struct {
	// BufferSize is the number of events collected before a flush.
	BufferSize int `koanf:"buffer_size" validate:"gte=0"`

	// FlushTimeout flushes a partial buffer after this long. Zero disables
	// the timer.
	FlushTimeout time.Duration `koanf:"flush_timeout" validate:"gte=0"`

	// SlidingTimeout restarts the timer on every write. Otherwise the timer
	// runs from the first event in the buffer.
	SlidingTimeout bool `koanf:"sliding_timeout"`
}

// DefaultBufferingConfig returns the default buffering configuration.
func DefaultBufferingConfig() BufferingConfig {
	return BufferingConfig{
		BufferSize:     100,
		SlidingTimeout: true,
	}
}

// Buffering collects events and forwards them to the target as one batch
// when the buffer fills, when the flush timer fires, on Flush and on Close.
type Buffering struct {
	*sink.Base
	target sink.Sink
	cfg    BufferingConfig

	// Guarded by the Base critical section.
	buffer   []sink.Item
	timer    *time.Timer
	timerGen uint64
}

// NewBuffering wraps target.
func NewBuffering(name string, target sink.Sink, cfg BufferingConfig) (*Buffering, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferingConfig().BufferSize
	}
	b := &Buffering{target: target, cfg: cfg}
	b.Base = sink.NewBase(name, b)
	return b, nil
}

// Target returns the wrapped sink.
func (b *Buffering) Target() sink.Sink { return b.target }

// Buffered returns the number of events waiting in the buffer.
func (b *Buffering) Buffered() int {
	n := 0
	b.RunLocked(func() { n = len(b.buffer) })
	return n
}

// InitializeSink initializes the target.
func (b *Buffering) InitializeSink(ctx context.Context) error {
	b.buffer = make([]sink.Item, 0, b.cfg.BufferSize)
	return sink.InitializeAll(ctx, b.target)
}

// WriteItem appends to the buffer and flushes it when full.
func (b *Buffering) WriteItem(item sink.Item) {
	b.buffer = append(b.buffer, item)
	if len(b.buffer) >= b.cfg.BufferSize {
		b.flushBuffer("full")
		return
	}
	if b.cfg.FlushTimeout > 0 && (b.cfg.SlidingTimeout || len(b.buffer) == 1) {
		b.armTimer()
	}
}

// WriteItems appends every item, flushing each time the buffer fills.
func (b *Buffering) WriteItems(items []sink.Item) {
	for _, it := range items {
		b.WriteItem(it)
	}
}

// FlushSink forwards the buffered remainder, then flushes the target.
func (b *Buffering) FlushSink(done async.Continuation) {
	b.flushBuffer("flush")
	b.target.Flush(done)
}

// CloseSink forwards the buffered remainder and closes the target.
func (b *Buffering) CloseSink() error {
	b.flushBuffer("close")
	return b.target.Close()
}

// armTimer must be called inside the critical section.
func (b *Buffering) armTimer() {
	b.stopTimer()
	gen := b.timerGen
	b.timer = time.AfterFunc(b.cfg.FlushTimeout, func() {
		b.RunLocked(func() {
			if gen != b.timerGen {
				return
			}
			b.timer = nil
			b.flushBuffer("timer")
		})
	})
}

// stopTimer invalidates any pending timer callback.
func (b *Buffering) stopTimer() {
	b.timerGen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// flushBuffer must be called inside the critical section.
func (b *Buffering) flushBuffer(reason string) {
	b.stopTimer()
	if len(b.buffer) == 0 {
		return
	}
	items := b.buffer
	b.buffer = make([]sink.Item, 0, b.cfg.BufferSize)

	metrics.BufferFlushes.WithLabelValues(b.Name(), reason).Inc()
	b.Log().Trace().
		Int("count", len(items)).
		Str("reason", reason).
		Msg("flushing buffer")
	b.target.WriteBatch(items)
}
