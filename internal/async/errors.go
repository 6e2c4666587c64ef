// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package async

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/tomtom215/sinkline/internal/logging"
)

// ErrTimeout is returned through a continuation guarded by WithTimeout when
// the operation did not complete in time.
var ErrTimeout = errors.New("async: operation timed out")

// AggregateError collects the failures of a parallel fan-out when more than
// one branch failed.
type AggregateError struct {
	Errors []error
}

// Error enumerates every cause.
func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  %d) %v", i+1, err)
	}
	return b.String()
}

// Unwrap exposes the individual causes to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Aggregate folds a list of errors: nil for none, the error itself for one,
// an *AggregateError for two or more.
func Aggregate(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		cp := make([]error, len(errs))
		copy(cp, errs)
		return &AggregateError{Errors: cp}
	}
}

// PanicError wraps a recovered panic value that was not itself an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// FromPanic converts a recovered value to an error. Error values are
// returned unchanged so callers can match them with errors.Is.
func FromPanic(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r, Stack: debug.Stack()}
}

// Safe runs fn and converts a panic into an error.
func Safe(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FromPanic(r)
			logging.Debug().
				Err(err).
				Str("stack", string(debug.Stack())).
				Msg("recovered panic in pipeline call")
		}
	}()
	fn()
	return nil
}
