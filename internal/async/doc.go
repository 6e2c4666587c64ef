// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package async provides the completion contract used by every sink in the
// dispatch pipeline and the combinators built on top of it.
//
// # Continuations
//
// Every operation that may finish later (writing an event, flushing a sink)
// reports its outcome through a Continuation: Complete(nil) on success or
// Complete(err) on failure. For any event handed to a sink the continuation
// reachable from that call fires exactly once.
//
// Guard enforces the exactly-once rule with an atomic flag. The first
// Complete call is forwarded, later calls are dropped and reported to the
// diagnostic logger. Guarding is idempotent:
//
//	g := async.Guard(c)
//	async.Guard(g) == g // true
//
// # Combinators
//
//   - WithTimeout: completes with a timeout error if the operation is slow
//   - Repeat: retries a body until it succeeds or the attempts run out
//   - ForEachSequential: runs a body per item, one after another
//   - ForEachParallel: runs a body per item concurrently and aggregates errors
//   - PrecededBy: runs an action before forwarding a successful completion
//
// Combinators never block the calling goroutine. A body that completes its
// continuation synchronously is iterated in a loop rather than recursively,
// so long sequences do not grow the stack.
//
// # Panics
//
// A body or sink that panics synchronously is treated as a failed operation.
// The panic is recovered and converted to an error with FromPanic. If the
// panicked value is an error it is used unchanged.
package async
