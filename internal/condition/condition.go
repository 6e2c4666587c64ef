// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package condition evaluates boolean predicates over log events for the
// filter wrappers.
//
// Conditions are either built in Go (MinLevel, Func) or compiled from a CEL
// expression at configuration load time:
//
//	c, err := condition.Compile(`severity >= 3 && logger.startsWith("db.")`)
//	keep, err := c.Evaluate(ev)
//
// The following variables are available to expressions:
//
//	level       string  lowercase level name ("info", "warn", ...)
//	severity    int     level ordinal, trace = 0 through fatal = 5
//	logger      string  logger name
//	message     string  formatted message
//	template    string  message template
//	error       string  error text, empty when the event has no error
//	has_error   bool
//	sequence    uint    sequence id
//	properties  map     event properties
//
// An evaluation failure is an error, never false.
package condition

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/tomtom215/sinkline/internal/event"
)

// ErrNotBoolean is returned when an expression does not evaluate to a bool.
var ErrNotBoolean = errors.New("condition: expression did not produce a bool")

// Condition decides whether an event matches.
type Condition interface {
	Evaluate(ev *event.LogEvent) (bool, error)
}

// Func adapts a function to a Condition.
type Func func(ev *event.LogEvent) (bool, error)

// Evaluate calls f(ev).
func (f Func) Evaluate(ev *event.LogEvent) (bool, error) { return f(ev) }

// MinLevel matches events at or above level.
func MinLevel(level event.Level) Condition {
	return Func(func(ev *event.LogEvent) (bool, error) {
		return ev.Level >= level, nil
	})
}

// Always matches every event.
var Always Condition = Func(func(*event.LogEvent) (bool, error) { return true, nil })

// Never matches no event.
var Never Condition = Func(func(*event.LogEvent) (bool, error) { return false, nil })

// All matches when every condition matches. Evaluation stops at the first
// mismatch or error; with no conditions it matches everything.
func All(conds ...Condition) Condition {
	return Func(func(ev *event.LogEvent) (bool, error) {
		for _, c := range conds {
			ok, err := c.Evaluate(ev)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// Any reports whether c matches at least one event. Evaluation stops at the
// first match or the first error.
func Any(c Condition, events []*event.LogEvent) (bool, error) {
	for _, ev := range events {
		ok, err := c.Evaluate(ev)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CEL is a condition compiled from a CEL expression. It is safe for
// concurrent use.
type CEL struct {
	expr string
	prg  cel.Program
}

var env = mustEnv()

func mustEnv() *cel.Env {
	e, err := cel.NewEnv(
		cel.Variable("level", cel.StringType),
		cel.Variable("severity", cel.IntType),
		cel.Variable("logger", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("template", cel.StringType),
		cel.Variable("error", cel.StringType),
		cel.Variable("has_error", cel.BoolType),
		cel.Variable("sequence", cel.UintType),
		cel.Variable("properties", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("condition: building CEL environment: %v", err))
	}
	return e
}

// Compile parses and type-checks expr.
func Compile(expr string) (*CEL, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expr, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program condition %q: %w", expr, err)
	}
	return &CEL{expr: expr, prg: prg}, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(expr string) *CEL {
	c, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the source expression.
func (c *CEL) String() string { return c.expr }

// Evaluate runs the expression against ev.
func (c *CEL) Evaluate(ev *event.LogEvent) (bool, error) {
	out, _, err := c.prg.Eval(activation(ev))
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", c.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrNotBoolean, c.expr, out.Value())
	}
	return b, nil
}

func activation(ev *event.LogEvent) map[string]any {
	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"level":      ev.Level.String(),
		"severity":   int64(ev.Level),
		"logger":     ev.LoggerName,
		"message":    ev.Message,
		"template":   ev.MessageTemplate,
		"error":      ev.ErrorText(),
		"has_error":  ev.Err != nil,
		"sequence":   ev.Sequence,
		"properties": props,
	}
}
