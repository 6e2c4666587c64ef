// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package queue implements the bounded FIFO used by the async dispatch
// wrapper to hold events between the producer and the background consumer.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// OverflowPolicy selects what Enqueue does when the queue is at capacity.
type OverflowPolicy int

const (
	// Discard drops the oldest queued item to make room for the new one.
	Discard OverflowPolicy = iota
	// Grow appends regardless of capacity.
	Grow
	// Block waits until a consumer frees a slot.
	Block
)

func (p OverflowPolicy) String() string {
	switch p {
	case Discard:
		return "discard"
	case Grow:
		return "grow"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration value to an OverflowPolicy.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return Discard, nil
	case "grow":
		return Grow, nil
	case "block":
		return Block, nil
	default:
		return Discard, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p OverflowPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *OverflowPolicy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Bounded is a thread-safe FIFO with a fixed capacity and overflow policy.
// The zero value is not usable; create one with New.
type Bounded[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	items    []T
	capacity int
	policy   OverflowPolicy
	closed   bool
}

// New creates a queue. A capacity below 1 is raised to 1.
func New[T any](capacity int, policy OverflowPolicy) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Bounded[T]{
		capacity: capacity,
		policy:   policy,
	}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Capacity returns the configured capacity.
func (q *Bounded[T]) Capacity() int { return q.capacity }

// Policy returns the configured overflow policy.
func (q *Bounded[T]) Policy() OverflowPolicy { return q.policy }

// Enqueue appends item according to the overflow policy. Under Discard it
// returns the oldest item if that one had to be dropped to make room; the
// caller decides what to do with it.
//
// Under Block it waits until the queue length is below capacity. A blocked
// producer is released without enqueuing when the queue is shut down.
func (q *Bounded[T]) Enqueue(item T) (old T, dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.policy {
	case Discard:
		if len(q.items) >= q.capacity {
			var zero T
			old = q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			dropped = true
		}
	case Block:
		for len(q.items) >= q.capacity && !q.closed {
			q.notFull.Wait()
		}
		if q.closed {
			return old, false
		}
	case Grow:
	}

	q.items = append(q.items, item)
	return old, dropped
}

// EnqueueContext is Enqueue with cancellation for the Block policy. It
// returns ctx.Err() if ctx ends before a slot frees up.
func (q *Bounded[T]) EnqueueContext(ctx context.Context, item T) (old T, dropped bool, err error) {
	if q.policy != Block {
		old, dropped = q.Enqueue(item)
		return old, dropped, nil
	}

	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.capacity && !q.closed {
		if err = ctx.Err(); err != nil {
			return old, false, err
		}
		q.notFull.Wait()
	}
	if q.closed {
		return old, false, nil
	}
	q.items = append(q.items, item)
	return old, false, nil
}

// DequeueBatch removes and returns up to max items in FIFO order. It never
// blocks and returns nil when the queue is empty.
func (q *Bounded[T]) DequeueBatch(max int) []T {
	if max < 1 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(max, len(q.items))
	if n == 0 {
		return nil
	}

	batch := make([]T, n)
	copy(batch, q.items[:n])
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}

	q.notFull.Broadcast()
	return batch
}

// Len returns the number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all queued items without handing them to anyone and
// returns how many were removed.
func (q *Bounded[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.notFull.Broadcast()
	return n
}

// Shutdown releases producers blocked under the Block policy. Items already
// queued stay in place; later Block enqueues return without appending.
func (q *Bounded[T]) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.notFull.Broadcast()
	q.mu.Unlock()
}
