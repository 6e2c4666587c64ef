// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sink

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/metrics"
)

// State is the lifecycle state of a sink.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Impl is the part of a sink a concrete implementation provides. Base calls
// these hooks with its lock held, only in the Initialized state, with
// continuations already guarded.
type Impl interface {
	InitializeSink(ctx context.Context) error
	WriteItem(item Item)
	FlushSink(done async.Continuation)
	CloseSink() error
}

// BatchImpl is implemented by sinks that handle a whole batch at once.
// Without it Base calls WriteItem per item.
type BatchImpl interface {
	WriteItems(items []Item)
}

// ConcurrentImpl is implemented by sinks whose write hooks are safe to call
// concurrently with each other and with FlushSink and CloseSink. Base checks
// the lifecycle state under its lock and releases it before WriteItem or
// WriteItems, so a write that waits for capacity does not hold up Flush or
// Close on the same sink.
type ConcurrentImpl interface {
	ConcurrentWrites() bool
}

// Base implements Sink on top of an Impl. Concrete sinks embed *Base and
// pass themselves as the Impl:
//
//	f := &File{}
//	f.Base = sink.NewBase(name, f)
//
// Write, WriteBatch, Flush, Initialize and Close share one critical
// section, except for the write hooks of a ConcurrentImpl. Continuations
// may run while it is held, so a continuation must not synchronously write
// to the sink that completed it.
type Base struct {
	name string
	impl Impl
	log  zerolog.Logger

	mu         sync.Mutex
	state      State
	initErr    error
	concurrent bool
}

// NewBase creates the lifecycle core of a sink.
func NewBase(name string, impl Impl) *Base {
	b := &Base{
		name: name,
		impl: impl,
		log:  logging.ForSink(name),
	}
	if ci, ok := impl.(ConcurrentImpl); ok {
		b.concurrent = ci.ConcurrentWrites()
	}
	return b
}

// Name returns the configured sink name.
func (b *Base) Name() string { return b.name }

// Log returns the diagnostic logger for this sink.
func (b *Base) Log() *zerolog.Logger { return &b.log }

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// InitErr returns the cached initialization error, if any.
func (b *Base) InitErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initErr
}

// Initialize runs InitializeSink once. A failure is cached and the sink
// stays uninitialized, so a later call retries.
func (b *Base) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateInitialized:
		return nil
	case StateClosed:
		return ErrClosed
	}

	var err error
	if perr := async.Safe(func() { err = b.impl.InitializeSink(ctx) }); perr != nil {
		err = perr
	}
	if err != nil {
		b.initErr = &InitError{Sink: b.name, Err: err}
		metrics.SinkInitFailures.WithLabelValues(b.name).Inc()
		b.log.Error().Err(err).Msg("sink initialization failed")
		return b.initErr
	}

	b.initErr = nil
	b.state = StateInitialized
	return nil
}

// guard wraps a continuation so that it fires once and is counted.
func (b *Base) guard(c async.Continuation) async.Continuation {
	c = async.Guard(c)
	name := b.name
	return async.Guard(async.Func(func(err error) {
		metrics.RecordWrite(name, err)
		c.Complete(err)
	}))
}

// inactive reports whether calls must short-circuit, and with what error.
// Must be called with mu held.
func (b *Base) inactive() (bool, error) {
	switch b.state {
	case StateInitialized:
		return false, nil
	case StateUninitialized:
		return true, b.initErr
	default:
		return true, nil
	}
}

// Write delivers one event through WriteItem.
func (b *Base) Write(item Item) {
	item.Done = b.guard(item.Done)

	b.mu.Lock()
	if skip, err := b.inactive(); skip {
		defer b.mu.Unlock()
		item.Done.Complete(err)
		return
	}
	if b.concurrent {
		b.mu.Unlock()
	} else {
		defer b.mu.Unlock()
	}

	if err := async.Safe(func() { b.impl.WriteItem(item) }); err != nil {
		item.Done.Complete(err)
	}
}

// WriteBatch delivers events through WriteItems when the implementation
// supports it, otherwise one WriteItem per event.
func (b *Base) WriteBatch(items []Item) {
	if len(items) == 0 {
		return
	}
	guarded := make([]Item, len(items))
	for i, it := range items {
		guarded[i] = Item{Event: it.Event, Done: b.guard(it.Done)}
	}

	b.mu.Lock()
	if skip, err := b.inactive(); skip {
		defer b.mu.Unlock()
		CompleteAll(guarded, err)
		return
	}
	if b.concurrent {
		b.mu.Unlock()
	} else {
		defer b.mu.Unlock()
	}

	if bi, ok := b.impl.(BatchImpl); ok {
		if err := async.Safe(func() { bi.WriteItems(guarded) }); err != nil {
			CompleteAll(guarded, err)
		}
		return
	}
	for _, it := range guarded {
		if err := async.Safe(func() { b.impl.WriteItem(it) }); err != nil {
			it.Done.Complete(err)
		}
	}
}

// Flush runs FlushSink.
func (b *Base) Flush(done async.Continuation) {
	done = async.Guard(done)

	b.mu.Lock()
	defer b.mu.Unlock()

	if skip, err := b.inactive(); skip {
		done.Complete(err)
		return
	}
	if err := async.Safe(func() { b.impl.FlushSink(done) }); err != nil {
		done.Complete(err)
	}
}

// Close runs CloseSink if the sink was initialized. Closing twice is a
// no-op.
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return nil
	}
	wasInitialized := b.state == StateInitialized
	b.state = StateClosed
	if !wasInitialized {
		return nil
	}

	var err error
	if perr := async.Safe(func() { err = b.impl.CloseSink() }); perr != nil {
		err = perr
	}
	if err != nil {
		b.log.Warn().Err(err).Msg("sink close failed")
	}
	return err
}

// RunLocked runs fn inside the sink's critical section if the sink is
// initialized. Timer and background paths use it to serialize with writes.
func (b *Base) RunLocked(fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateInitialized {
		return false
	}
	if err := async.Safe(fn); err != nil {
		b.log.Error().Err(err).Msg("background sink operation failed")
	}
	return true
}
