// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package async

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// step coordinates one iteration of a trampolined loop. If the body
// completes before it returns, the loop continues inline instead of the
// continuation recursing into the next iteration.
type step struct {
	mu       sync.Mutex
	returned bool
	inline   bool
	aborted  bool
}

// handOff is called from the continuation when the next iteration should
// run. It returns true when the loop goroutine will pick it up.
func (s *step) handOff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return true
	}
	if !s.returned {
		s.inline = true
		return true
	}
	return false
}

// bodyReturned marks the body as returned and reports whether the loop
// should continue with the next iteration.
func (s *step) bodyReturned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returned = true
	return s.inline
}

func (s *step) abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
}

func (s *step) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// WithTimeout returns a continuation that forwards to c, or completes c with
// an error wrapping ErrTimeout if nothing arrives within d. Whichever comes
// first wins; the other is dropped. A non-positive d disables the timer.
func WithTimeout(c Continuation, d time.Duration) Continuation {
	target := Guard(c)
	if d <= 0 {
		return target
	}
	timer := time.AfterFunc(d, func() {
		target.Complete(fmt.Errorf("%w after %s", ErrTimeout, d))
	})
	return Guard(Func(func(err error) {
		timer.Stop()
		target.Complete(err)
	}))
}

// Repeat invokes body up to n times. It stops at the first success and
// completes final with nil. After n failures final receives the last error.
// A synchronous panic in body aborts the loop and completes final with the
// recovered error, without further attempts. n <= 0 completes final with nil
// immediately.
func Repeat(n int, final Continuation, body func(next Continuation)) {
	final = Guard(final)
	if n <= 0 {
		final.Complete(nil)
		return
	}

	var run func(start int)
	run = func(start int) {
		for i := start; i < n; i++ {
			attempt := i
			st := &step{}
			next := Guard(Func(func(err error) {
				if st.isAborted() {
					return
				}
				if err == nil {
					final.Complete(nil)
					return
				}
				if attempt+1 >= n {
					final.Complete(err)
					return
				}
				if st.handOff() {
					return
				}
				run(attempt + 1)
			}))

			if err := Safe(func() { body(next) }); err != nil {
				st.abort()
				final.Complete(err)
				return
			}
			if !st.bodyReturned() {
				return
			}
		}
	}
	run(0)
}

// ForEachSequential invokes body for each item in order, starting the next
// only after the previous one completed successfully. The first failure
// completes final with that error and skips the remaining items. An empty
// list completes final with nil.
func ForEachSequential[T any](items []T, final Continuation, body func(item T, next Continuation)) {
	final = Guard(final)
	if len(items) == 0 {
		final.Complete(nil)
		return
	}

	var run func(start int)
	run = func(start int) {
		for i := start; i < len(items); i++ {
			idx := i
			st := &step{}
			next := Guard(Func(func(err error) {
				if err != nil {
					final.Complete(err)
					return
				}
				if idx+1 >= len(items) {
					final.Complete(nil)
					return
				}
				if st.handOff() {
					return
				}
				run(idx + 1)
			}))

			if err := Safe(func() { body(items[idx], next) }); err != nil {
				next.Complete(err)
			}
			if !st.bodyReturned() {
				return
			}
		}
	}
	run(0)
}

// ForEachParallel invokes body for every item concurrently and completes
// final once all of them have completed. No failure completes final with
// nil, a single failure with that error, and several failures with an
// *AggregateError holding all of them. An empty list completes final with
// nil synchronously.
func ForEachParallel[T any](items []T, final Continuation, body func(item T, next Continuation)) {
	final = Guard(final)
	if len(items) == 0 {
		final.Complete(nil)
		return
	}

	var (
		mu        sync.Mutex
		errs      []error
		remaining atomic.Int64
	)
	remaining.Store(int64(len(items)))

	for _, item := range items {
		next := Guard(Func(func(err error) {
			mu.Lock()
			if err != nil {
				errs = append(errs, err)
			}
			mu.Unlock()
			if remaining.Add(-1) == 0 {
				mu.Lock()
				result := Aggregate(errs)
				mu.Unlock()
				final.Complete(result)
			}
		}))
		go func() {
			if err := Safe(func() { body(item, next) }); err != nil {
				next.Complete(err)
			}
		}()
	}
}

// PrecededBy returns a continuation that, on success, runs action before
// original is completed. The action receives original as its continuation,
// so its own outcome is what original sees. A failure bypasses action and
// is forwarded directly.
func PrecededBy(original Continuation, action func(next Continuation)) Continuation {
	original = Guard(original)
	return Guard(Func(func(err error) {
		if err != nil {
			original.Complete(err)
			return
		}
		if perr := Safe(func() { action(original) }); perr != nil {
			original.Complete(perr)
		}
	}))
}
