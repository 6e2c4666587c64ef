// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package sink defines the contract every destination and wrapper in the
// dispatch pipeline implements, and Base, which enforces that contract for
// concrete implementations.
//
// A Sink accepts events one at a time or in batches and reports the outcome
// of each event through the continuation carried by its Item. Lifecycle is
// strictly ordered:
//
//	Uninitialized --Initialize--> Initialized --Close--> Closed
//
// Write, WriteBatch and Flush on a sink that is not initialized succeed
// immediately without doing anything, unless an earlier Initialize failed,
// in which case they fail with that initialization error. Closed is
// terminal.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/event"
)

// ErrClosed is returned by Initialize on a closed sink.
var ErrClosed = errors.New("sink: closed")

// Item is one event in flight together with its completion continuation.
type Item struct {
	Event *event.LogEvent
	Done  async.Continuation
}

// NewItem pairs an event with a continuation.
func NewItem(ev *event.LogEvent, done async.Continuation) Item {
	return Item{Event: ev, Done: done}
}

// Complete finishes the item. A nil Done is tolerated.
func (it Item) Complete(err error) {
	if it.Done != nil {
		it.Done.Complete(err)
	}
}

// Sink is a destination for log events.
type Sink interface {
	// Name is the configured sink name, used in diagnostics and metrics.
	Name() string

	// Initialize prepares the sink. Wrappers initialize their children.
	Initialize(ctx context.Context) error

	// Write delivers one event. The item's continuation fires exactly once.
	Write(item Item)

	// WriteBatch delivers events in order. Every item's continuation fires
	// exactly once.
	WriteBatch(items []Item)

	// Flush completes done once everything accepted so far has been
	// handed to the underlying medium.
	Flush(done async.Continuation)

	// Close releases resources. Wrappers close their children.
	Close() error
}

// Wrapper is a sink that decorates exactly one child.
type Wrapper interface {
	Sink
	Target() Sink
}

// Group is a sink that forwards to an ordered list of children.
type Group interface {
	Sink
	Targets() []Sink
}

// InitError is a cached initialization failure. It is replayed to every
// write and flush until the sink is initialized successfully.
type InitError struct {
	Sink string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("sink %q: initialization failed: %v", e.Sink, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// CompleteAll finishes every item with err.
func CompleteAll(items []Item, err error) {
	for _, it := range items {
		it.Complete(err)
	}
}

// Events extracts the events of a batch.
func Events(items []Item) []*event.LogEvent {
	out := make([]*event.LogEvent, len(items))
	for i, it := range items {
		out[i] = it.Event
	}
	return out
}

// InitializeAll initializes children in order and stops at the first
// failure.
func InitializeAll(ctx context.Context, children ...Sink) error {
	for _, c := range children {
		if c == nil {
			continue
		}
		if err := c.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every child and aggregates the failures.
func CloseAll(children ...Sink) error {
	var errs []error
	for _, c := range children {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return async.Aggregate(errs)
}

// FlushAll flushes children in parallel and completes done when all of
// them have finished.
func FlushAll(children []Sink, done async.Continuation) {
	async.ForEachParallel(children, done, func(c Sink, next async.Continuation) {
		c.Flush(next)
	})
}
