// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/sinkline/internal/condition"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/sink/sinktest"
)

func TestPostFilter_RuleSelectsFilter(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	p, err := NewPostFilter("post", target, condition.MinLevel(event.Warn), []PostFilterRule{
		{Exists: condition.MinLevel(event.Error), Filter: condition.MinLevel(event.Debug)},
	})
	if err != nil {
		t.Fatalf("NewPostFilter error = %v", err)
	}
	p.Initialize(context.Background())
	defer p.Close()

	// No error in the batch: default filter keeps warnings only.
	quiet, quietComps := levelItems(event.Debug, event.Info, event.Warn)
	p.WriteBatch(quiet)
	if got := target.DeliveredCount(); got != 1 {
		t.Errorf("quiet batch delivered = %d, want 1", got)
	}

	// An error in the batch switches to the debug filter.
	noisy, noisyComps := levelItems(event.Trace, event.Debug, event.Info, event.Error)
	p.WriteBatch(noisy)
	if got := target.DeliveredCount(); got != 1+3 {
		t.Errorf("delivered after noisy batch = %d, want 4", got)
	}

	for i, c := range append(quietComps, noisyComps...) {
		if c.Calls() != 1 {
			t.Errorf("item %d calls = %d, want 1", i, c.Calls())
		}
	}
}

func TestPostFilter_NilDefaultPassesAll(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	p, _ := NewPostFilter("post", target, nil, nil)
	p.Initialize(context.Background())
	defer p.Close()

	item, c := sinktest.Item("single")
	p.Write(item)
	if target.DeliveredCount() != 1 || c.Err() != nil {
		t.Errorf("delivered = %d err = %v", target.DeliveredCount(), c.Err())
	}
}

func TestPostFilter_FirstMatchingRuleWins(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	p, _ := NewPostFilter("post", target, condition.Never, []PostFilterRule{
		{Exists: condition.MinLevel(event.Fatal), Filter: condition.Always},
		{Exists: condition.MinLevel(event.Warn), Filter: condition.MinLevel(event.Info)},
		{Exists: condition.MinLevel(event.Trace), Filter: condition.Always},
	})
	p.Initialize(context.Background())
	defer p.Close()

	items, _ := levelItems(event.Debug, event.Info, event.Warn)
	p.WriteBatch(items)

	if got := target.DeliveredCount(); got != 2 {
		t.Errorf("delivered = %d, want 2 (second rule)", got)
	}
}

func TestPostFilter_TriggerErrorFailsOnlyThatEvent(t *testing.T) {
	t.Parallel()

	boom := errors.New("trigger broke")
	target := sinktest.New("target")
	p, _ := NewPostFilter("post", target, condition.Always, []PostFilterRule{{
		Exists: condition.Func(func(ev *event.LogEvent) (bool, error) {
			if ev.Level == event.Info {
				return false, boom
			}
			return false, nil
		}),
		Filter: condition.Never,
	}})
	p.Initialize(context.Background())
	defer p.Close()

	items, comps := levelItems(event.Debug, event.Info, event.Warn)
	p.WriteBatch(items)

	if !errors.Is(comps[1].Err(), boom) {
		t.Errorf("failed trigger err = %v, want %v", comps[1].Err(), boom)
	}
	if comps[1].Calls() != 1 {
		t.Errorf("failed trigger calls = %d, want 1", comps[1].Calls())
	}
	if got := target.DeliveredCount(); got != 2 {
		t.Errorf("delivered = %d, want 2 under the default filter", got)
	}
}

func TestNewPostFilter_RequiresTarget(t *testing.T) {
	t.Parallel()

	if _, err := NewPostFilter("post", nil, nil, nil); err == nil {
		t.Error("NewPostFilter(nil target) error = nil, want error")
	}
}
