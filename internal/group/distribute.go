// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package group

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/sink"
)

// RoundRobin sends each event to one child, rotating through the children
// in order regardless of the outcome of previous writes.
type RoundRobin struct {
	*sink.Base
	members
	next atomic.Uint64
}

// NewRoundRobin creates a round-robin group.
func NewRoundRobin(name string, targets []sink.Sink) *RoundRobin {
	r := &RoundRobin{members: newMembers(targets)}
	r.Base = sink.NewBase(name, r)
	return r
}

// WriteItem forwards the item to the next child in rotation.
func (r *RoundRobin) WriteItem(item sink.Item) {
	if len(r.targets) == 0 {
		item.Complete(nil)
		return
	}
	i := (r.next.Add(1) - 1) % uint64(len(r.targets))
	r.targets[i].Write(item)
}

// Random sends each event to one uniformly chosen child.
type Random struct {
	*sink.Base
	members
	pick func(n int) int
}

// NewRandom creates a random distribution group.
func NewRandom(name string, targets []sink.Sink) *Random {
	r := &Random{members: newMembers(targets), pick: rand.IntN}
	r.Base = sink.NewBase(name, r)
	return r
}

// WriteItem forwards the item to a random child.
func (r *Random) WriteItem(item sink.Item) {
	if len(r.targets) == 0 {
		item.Complete(nil)
		return
	}
	r.targets[r.pick(len(r.targets))].Write(item)
}

// Split writes every event to all children, one after another. The event
// completes after the last child succeeds; the first failure stops the
// remaining children for that event.
type Split struct {
	*sink.Base
	members
}

// NewSplit creates a split group.
func NewSplit(name string, targets []sink.Sink) *Split {
	s := &Split{members: newMembers(targets)}
	s.Base = sink.NewBase(name, s)
	return s
}

// WriteItem forwards the item to every child in order.
func (s *Split) WriteItem(item sink.Item) {
	async.ForEachSequential(s.targets, item.Done, func(t sink.Sink, next async.Continuation) {
		t.Write(sink.Item{Event: item.Event, Done: next})
	})
}
