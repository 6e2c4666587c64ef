// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/condition"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// PostFilterRule selects Filter for a batch when Exists matches at least
// one event of that batch.
type PostFilterRule struct {
	Exists condition.Condition
	Filter condition.Condition
}

// PostFilter decides per batch which filter applies. Rules are tried in
// order; the first whose Exists condition matches any event of the batch
// selects its Filter. Without a matching rule DefaultFilter applies; a nil
// filter passes everything.
//
// A typical use keeps only warnings in normal operation but forwards the
// whole batch, debug lines included, once an error shows up in it.
type PostFilter struct {
	*sink.Base
	target        sink.Sink
	defaultFilter condition.Condition
	rules         []PostFilterRule
}

// NewPostFilter wraps target.
func NewPostFilter(name string, target sink.Sink, defaultFilter condition.Condition, rules []PostFilterRule) (*PostFilter, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	p := &PostFilter{
		target:        target,
		defaultFilter: defaultFilter,
		rules:         append([]PostFilterRule(nil), rules...),
	}
	p.Base = sink.NewBase(name, p)
	return p, nil
}

// Target returns the wrapped sink.
func (p *PostFilter) Target() sink.Sink { return p.target }

// InitializeSink initializes the target.
func (p *PostFilter) InitializeSink(ctx context.Context) error {
	return sink.InitializeAll(ctx, p.target)
}

// WriteItem treats a single event as a batch of one.
func (p *PostFilter) WriteItem(item sink.Item) {
	p.WriteItems([]sink.Item{item})
}

// WriteItems selects a filter for the batch and forwards the events it
// admits as one sub-batch. Every other event completes here.
func (p *PostFilter) WriteItems(items []sink.Item) {
	failed := make(map[int]bool)
	filter := p.selectFilter(items, failed)

	kept := make([]sink.Item, 0, len(items))
	for i, it := range items {
		if failed[i] {
			continue
		}
		if filter == nil {
			kept = append(kept, it)
			continue
		}
		ok, err := filter.Evaluate(it.Event)
		switch {
		case err != nil:
			p.Log().Warn().Err(err).Uint64("seq", it.Event.Sequence).Msg("post-filter condition failed")
			it.Complete(err)
		case ok:
			kept = append(kept, it)
		default:
			metrics.FilteredEvents.WithLabelValues(p.Name(), "post").Inc()
			it.Complete(nil)
		}
	}

	if len(kept) > 0 {
		p.target.WriteBatch(kept)
	}
}

// selectFilter returns the filter of the first triggered rule. An event
// whose trigger evaluation fails is completed with the error and marked in
// failed.
func (p *PostFilter) selectFilter(items []sink.Item, failed map[int]bool) condition.Condition {
	for _, rule := range p.rules {
		for i, it := range items {
			if failed[i] {
				continue
			}
			ok, err := rule.Exists.Evaluate(it.Event)
			if err != nil {
				p.Log().Warn().Err(err).Uint64("seq", it.Event.Sequence).Msg("post-filter trigger failed")
				failed[i] = true
				it.Complete(err)
				continue
			}
			if ok {
				return rule.Filter
			}
		}
	}
	return p.defaultFilter
}

// FlushSink flushes the target.
func (p *PostFilter) FlushSink(done async.Continuation) {
	p.target.Flush(done)
}

// CloseSink closes the target.
func (p *PostFilter) CloseSink() error {
	return p.target.Close()
}
