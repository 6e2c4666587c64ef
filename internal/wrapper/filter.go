// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"errors"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/condition"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// ErrNoCondition is returned by NewFilter given a nil condition.
var ErrNoCondition = errors.New("wrapper: filter condition required")

// Filter forwards only events matching its condition. Non-matching events
// complete with nil. A condition that fails to evaluate completes the
// event with that error.
type Filter struct {
	*sink.Base
	target sink.Sink
	cond   condition.Condition
}

// NewFilter wraps target.
func NewFilter(name string, target sink.Sink, cond condition.Condition) (*Filter, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, ErrNoCondition
	}
	f := &Filter{target: target, cond: cond}
	f.Base = sink.NewBase(name, f)
	return f, nil
}

// Target returns the wrapped sink.
func (f *Filter) Target() sink.Sink { return f.target }

// InitializeSink initializes the target.
func (f *Filter) InitializeSink(ctx context.Context) error {
	return sink.InitializeAll(ctx, f.target)
}

// WriteItem forwards the item if it matches.
func (f *Filter) WriteItem(item sink.Item) {
	if f.admit(item) {
		f.target.Write(item)
	}
}

// WriteItems forwards the matching items as one batch.
func (f *Filter) WriteItems(items []sink.Item) {
	kept := make([]sink.Item, 0, len(items))
	for _, it := range items {
		if f.admit(it) {
			kept = append(kept, it)
		}
	}
	if len(kept) > 0 {
		f.target.WriteBatch(kept)
	}
}

// admit evaluates the condition and completes items that are not
// forwarded.
func (f *Filter) admit(item sink.Item) bool {
	ok, err := f.cond.Evaluate(item.Event)
	if err != nil {
		f.Log().Warn().Err(err).Uint64("seq", item.Event.Sequence).Msg("filter condition failed")
		item.Complete(err)
		return false
	}
	if !ok {
		metrics.FilteredEvents.WithLabelValues(f.Name(), "pre").Inc()
		item.Complete(nil)
		return false
	}
	return true
}

// FlushSink flushes the target.
func (f *Filter) FlushSink(done async.Continuation) {
	f.target.Flush(done)
}

// CloseSink closes the target.
func (f *Filter) CloseSink() error {
	return f.target.Close()
}
