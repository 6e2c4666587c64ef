// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package group

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sink/sinktest"
)

const wait = 2 * time.Second

func recorders(n int) ([]*sinktest.Recorder, []sink.Sink) {
	recs := make([]*sinktest.Recorder, n)
	sinks := make([]sink.Sink, n)
	for i := range recs {
		recs[i] = sinktest.New(string(rune('a' + i)))
		sinks[i] = recs[i]
	}
	return recs, sinks
}

func initialize(t *testing.T, s sink.Sink) {
	t.Helper()
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize(%s) error = %v", s.Name(), err)
	}
}

func TestFailover_Sticky(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	recs[0].FailNext(1, nil)
	f := NewFailover("failover", sinks, false)
	initialize(t, f)
	defer f.Close()

	items, comps := sinktest.Items(10)
	for _, it := range items {
		f.Write(it)
	}

	for i, c := range comps {
		if err := c.Wait(t, wait); err != nil {
			t.Errorf("item %d err = %v", i, err)
		}
	}
	if got := recs[0].ReceivedCount(); got != 1 {
		t.Errorf("sink 1 received = %d, want 1", got)
	}
	if got := recs[1].ReceivedCount(); got != 10 {
		t.Errorf("sink 2 received = %d, want 10", got)
	}
	if got := recs[2].ReceivedCount(); got != 0 {
		t.Errorf("sink 3 received = %d, want 0", got)
	}
	if f.Current() != 1 {
		t.Errorf("Current = %d, want 1", f.Current())
	}
}

func TestFailover_ReturnToFirstOnSuccess(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	recs[0].FailNext(1, nil)
	f := NewFailover("failover", sinks, true)
	initialize(t, f)
	defer f.Close()

	items, comps := sinktest.Items(10)
	for _, it := range items {
		f.Write(it)
	}

	for i, c := range comps {
		if err := c.Wait(t, wait); err != nil {
			t.Errorf("item %d err = %v", i, err)
		}
	}
	if got := recs[0].ReceivedCount(); got != 10 {
		t.Errorf("sink 1 received = %d, want 10", got)
	}
	if got := recs[1].ReceivedCount(); got != 1 {
		t.Errorf("sink 2 received = %d, want 1", got)
	}
}

func TestFailover_AllFail(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	last := errors.New("third down")
	recs[0].FailAlways(true, nil)
	recs[1].FailAlways(true, nil)
	recs[2].FailAlways(true, last)
	f := NewFailover("failover", sinks, false)
	initialize(t, f)
	defer f.Close()

	item, c := sinktest.Item("nowhere")
	f.Write(item)

	if err := c.Wait(t, wait); err != last {
		t.Errorf("err = %v, want last error %v", err, last)
	}
	for i, r := range recs {
		if r.ReceivedCount() != 1 {
			t.Errorf("sink %d received = %d, want 1", i+1, r.ReceivedCount())
		}
	}
	if c.Calls() != 1 {
		t.Errorf("calls = %d, want 1", c.Calls())
	}
}

func TestFailover_AsyncChildren(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(2)
	recs[0].FailNext(1, nil)
	recs[0].CompleteAsync(true)
	recs[1].CompleteAsync(true)
	f := NewFailover("failover", sinks, false)
	initialize(t, f)
	defer f.Close()

	item, c := sinktest.Item("async")
	f.Write(item)
	if err := c.Wait(t, wait); err != nil {
		t.Fatalf("err = %v", err)
	}
	if recs[1].DeliveredCount() != 1 {
		t.Errorf("sink 2 delivered = %d, want 1", recs[1].DeliveredCount())
	}
}

func TestFailover_Empty(t *testing.T) {
	t.Parallel()

	f := NewFailover("failover", nil, false)
	initialize(t, f)
	item, c := sinktest.Item("x")
	f.Write(item)
	if !c.Fired() || c.Err() != nil {
		t.Errorf("empty group should succeed immediately, fired=%v err=%v", c.Fired(), c.Err())
	}
}

func TestRoundRobin_Distribution(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	recs[1].FailAlways(true, nil)
	r := NewRoundRobin("rr", sinks)
	initialize(t, r)
	defer r.Close()

	items, _ := sinktest.Items(10)
	for _, it := range items {
		r.Write(it)
	}

	want := []int{4, 3, 3}
	for i, rec := range recs {
		if got := rec.ReceivedCount(); got != want[i] {
			t.Errorf("sink %d received = %d, want %d", i+1, got, want[i])
		}
	}
	// Rotation starts at the first sink.
	if got := recs[0].Received()[0].Message; got != items[0].Event.Message {
		t.Errorf("first event went to %q", got)
	}
}

func TestRandom_UsesPicker(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	r := NewRandom("random", sinks)
	picks := []int{2, 0, 2, 1}
	i := 0
	r.pick = func(n int) int {
		if n != 3 {
			t.Errorf("pick(%d), want 3", n)
		}
		p := picks[i]
		i++
		return p
	}
	initialize(t, r)
	defer r.Close()

	items, comps := sinktest.Items(4)
	for _, it := range items {
		r.Write(it)
	}
	if recs[0].ReceivedCount() != 1 || recs[1].ReceivedCount() != 1 || recs[2].ReceivedCount() != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/1/2", recs[0].ReceivedCount(), recs[1].ReceivedCount(), recs[2].ReceivedCount())
	}
	for _, c := range comps {
		if c.Calls() != 1 {
			t.Errorf("calls = %d, want 1", c.Calls())
		}
	}
}

func TestRandom_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	r := NewRandom("random", nil)
	initialize(t, r)
	item, c := sinktest.Item("x")
	r.Write(item)
	if !c.Fired() || c.Err() != nil {
		t.Errorf("fired=%v err=%v, want immediate success", c.Fired(), c.Err())
	}
}

func TestSplit_WritesToAllInOrder(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	s := NewSplit("split", sinks)
	initialize(t, s)
	defer s.Close()

	items, comps := sinktest.Items(2)
	s.WriteBatch(items)

	for i, c := range comps {
		if err := c.Wait(t, wait); err != nil {
			t.Errorf("item %d err = %v", i, err)
		}
	}
	for i, r := range recs {
		if r.DeliveredCount() != 2 {
			t.Errorf("sink %d delivered = %d, want 2", i+1, r.DeliveredCount())
		}
	}
}

func TestSplit_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	recs[1].FailAlways(true, nil)
	s := NewSplit("split", sinks)
	initialize(t, s)
	defer s.Close()

	item, c := sinktest.Item("partial")
	s.Write(item)

	if err := c.Wait(t, wait); !errors.Is(err, sinktest.ErrScripted) {
		t.Errorf("err = %v, want ErrScripted", err)
	}
	if recs[2].ReceivedCount() != 0 {
		t.Errorf("sink 3 received = %d, want 0", recs[2].ReceivedCount())
	}
}

func TestGroup_FlushAndCloseReachChildren(t *testing.T) {
	t.Parallel()

	recs, sinks := recorders(3)
	g := NewRoundRobin("rr", sinks)
	initialize(t, g)

	done := sinktest.NewCompletion()
	g.Flush(done)
	if err := done.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	for i, r := range recs {
		if r.Flushes() != 1 || r.CloseCalls() != 1 || r.InitCalls() != 1 {
			t.Errorf("sink %d flush/close/init = %d/%d/%d, want 1/1/1", i+1, r.Flushes(), r.CloseCalls(), r.InitCalls())
		}
	}
	if len(g.Targets()) != 3 {
		t.Errorf("Targets = %d, want 3", len(g.Targets()))
	}
}
