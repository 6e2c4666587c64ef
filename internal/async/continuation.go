// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package async

import (
	"context"
	"sync/atomic"

	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/metrics"
)

// Continuation receives the outcome of an asynchronous operation.
type Continuation interface {
	// Complete reports success (nil) or failure.
	Complete(err error)
}

// Func adapts an ordinary function to a Continuation. A nil Func is a no-op.
type Func func(err error)

// Complete calls f(err).
func (f Func) Complete(err error) {
	if f != nil {
		f(err)
	}
}

// Nop is a continuation that ignores its outcome.
var Nop Continuation = Func(nil)

// guarded forwards only the first completion it receives.
type guarded struct {
	fired atomic.Bool
	next  Continuation
}

func (g *guarded) Complete(err error) {
	if !g.fired.CompareAndSwap(false, true) {
		metrics.ContinuationDuplicates.Inc()
		logging.Debug().
			Err(err).
			Msg("continuation invoked more than once, ignoring")
		return
	}
	g.next.Complete(err)
}

// Guard returns a continuation that forwards only its first invocation to c.
// Guarding an already guarded continuation returns it unchanged. A nil c is
// treated as Nop.
func Guard(c Continuation) Continuation {
	if g, ok := c.(*guarded); ok {
		return g
	}
	if c == nil {
		c = Nop
	}
	return &guarded{next: c}
}

// Fired reports whether a guarded continuation has already been completed.
// It returns false for continuations that were not produced by Guard.
func Fired(c Continuation) bool {
	g, ok := c.(*guarded)
	return ok && g.fired.Load()
}

// Await runs op and blocks until the continuation it was given completes or
// ctx is done. It is meant for callers at the edge of the pipeline that need
// a synchronous answer, such as flushing on shutdown.
func Await(ctx context.Context, op func(next Continuation)) error {
	done := make(chan error, 1)
	next := Guard(Func(func(err error) { done <- err }))
	if err := Safe(func() { op(next) }); err != nil {
		next.Complete(err)
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
