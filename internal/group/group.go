// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package group contains sinks that forward to an ordered list of
// children: fail-over, round-robin, random and split.
//
// Groups never reorder events. They only decide which child, or children,
// receive each one. Flush fans out to every child in parallel and
// completes when all of them have flushed.
package group

import (
	"context"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/sink"
)

// members implements the lifecycle hooks shared by all groups.
type members struct {
	targets []sink.Sink
}

func newMembers(targets []sink.Sink) members {
	kept := make([]sink.Sink, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return members{targets: kept}
}

// Targets returns the children in order.
func (m members) Targets() []sink.Sink {
	return append([]sink.Sink(nil), m.targets...)
}

// InitializeSink initializes every child.
func (m members) InitializeSink(ctx context.Context) error {
	return sink.InitializeAll(ctx, m.targets...)
}

// FlushSink flushes every child in parallel.
func (m members) FlushSink(done async.Continuation) {
	sink.FlushAll(m.targets, done)
}

// CloseSink closes every child.
func (m members) CloseSink() error {
	return sink.CloseAll(m.targets...)
}
