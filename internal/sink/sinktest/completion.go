// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sinktest

import (
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/sink"
)

// Completion counts how often a continuation fired and keeps the errors.
type Completion struct {
	mu   sync.Mutex
	errs []error
	done chan struct{}
	once sync.Once
}

// NewCompletion creates an unfired completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Complete implements async.Continuation.
func (c *Completion) Complete(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

// Calls returns how many times Complete ran.
func (c *Completion) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Fired reports whether Complete ran at least once.
func (c *Completion) Fired() bool {
	return c.Calls() > 0
}

// Err returns the first completion error.
func (c *Completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs[0]
}

// Wait blocks until the first completion and returns its error.
func (c *Completion) Wait(t testing.TB, timeout time.Duration) error {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(timeout):
		t.Fatalf("continuation not invoked within %s", timeout)
	}
	return c.Err()
}

// Items builds n items with messages "event 0".."event n-1" and one
// Completion per item.
func Items(n int) ([]sink.Item, []*Completion) {
	seq := event.NewSequencer()
	items := make([]sink.Item, n)
	comps := make([]*Completion, n)
	for i := range items {
		comps[i] = NewCompletion()
		items[i] = sink.NewItem(seq.New(event.Info, "test", "event %d", i), comps[i])
	}
	return items, comps
}

// Item builds a single info-level item with the given message.
func Item(msg string) (sink.Item, *Completion) {
	c := NewCompletion()
	ev := event.NewSequencer().NewMessage(event.Info, "test", msg)
	return sink.NewItem(ev, c), c
}

// Continuation returns c as an async.Continuation.
func (c *Completion) Continuation() async.Continuation { return c }
