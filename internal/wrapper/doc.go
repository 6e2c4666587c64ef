// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package wrapper contains sinks that decorate exactly one child sink:
//
//   - Async: background consumer loop over a bounded queue
//   - Buffering: in-memory buffer flushed when full or on a timer
//   - Retry: bounded attempts with a delay between them
//   - Filter: drops events that do not match a condition
//   - PostFilter: batch-level rules selecting a per-event filter
//   - Limiting: token bucket cap on events per interval
//   - Breaker: circuit breaker that fails fast while the child is down
//
// Every wrapper initializes its child in Initialize and closes it in Close.
// Events dropped on purpose (filtered, limited, discarded on overflow)
// complete with nil; they are reported to the diagnostic channel and
// metrics, never as event errors.
package wrapper

import (
	"errors"

	"github.com/tomtom215/sinkline/internal/sink"
)

// ErrNoTarget is returned by constructors given a nil child.
var ErrNoTarget = errors.New("wrapper: target sink required")

func requireTarget(target sink.Sink) error {
	if target == nil {
		return ErrNoTarget
	}
	return nil
}
