// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package group

import (
	"context"
	"sync"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// Failover writes each event to the current child. When that child fails,
// the group advances to the next one and retries the same event there,
// until a child succeeds or every child has been tried once.
//
// With ReturnToFirstOnSuccess the next event starts at the first child
// again after any success. Without it the group sticks to whichever child
// last succeeded.
type Failover struct {
	*sink.Base
	members
	returnToFirst bool

	mu      sync.Mutex
	current int
}

// NewFailover creates a fail-over group.
func NewFailover(name string, targets []sink.Sink, returnToFirstOnSuccess bool) *Failover {
	f := &Failover{members: newMembers(targets), returnToFirst: returnToFirstOnSuccess}
	f.Base = sink.NewBase(name, f)
	return f
}

// Current returns the index of the child the next event goes to.
func (f *Failover) Current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// InitializeSink resets the active child and initializes every child.
func (f *Failover) InitializeSink(ctx context.Context) error {
	f.mu.Lock()
	f.current = 0
	f.mu.Unlock()
	return f.members.InitializeSink(ctx)
}

// WriteItem writes the item to the active child, failing over as needed.
func (f *Failover) WriteItem(item sink.Item) {
	n := len(f.targets)
	if n == 0 {
		item.Complete(nil)
		return
	}

	f.mu.Lock()
	start := f.current
	f.mu.Unlock()

	f.attempt(item, start, 1)
}

// attempt writes to child idx; tries counts children tried for this event.
func (f *Failover) attempt(item sink.Item, idx, tries int) {
	n := len(f.targets)
	target := f.targets[idx]
	target.Write(sink.Item{
		Event: item.Event,
		Done: async.Func(func(err error) {
			if err == nil {
				if f.returnToFirst {
					f.mu.Lock()
					f.current = 0
					f.mu.Unlock()
				}
				item.Complete(nil)
				return
			}

			next := (idx + 1) % n
			f.mu.Lock()
			if f.current == idx {
				f.current = next
			}
			f.mu.Unlock()

			if tries >= n {
				f.Log().Warn().
					Err(err).
					Int("targets", n).
					Msg("all fail-over targets failed")
				item.Complete(err)
				return
			}

			metrics.FailoverSwitches.WithLabelValues(f.Name()).Inc()
			f.Log().Warn().
				Err(err).
				Str("failed", target.Name()).
				Str("next", f.targets[next].Name()).
				Msg("target failed, failing over")
			f.attempt(item, next, tries+1)
		}),
	})
}
