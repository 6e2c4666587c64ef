// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/sink/sinktest"
)

func newBuffering(t *testing.T, target *sinktest.Recorder, cfg BufferingConfig) *Buffering {
	t.Helper()
	b, err := NewBuffering("buffer", target, cfg)
	if err != nil {
		t.Fatalf("NewBuffering error = %v", err)
	}
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	return b
}

func TestBuffering_FlushesWhenFull(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	b := newBuffering(t, target, BufferingConfig{BufferSize: 3})
	defer b.Close()

	items, comps := sinktest.Items(7)
	for _, it := range items {
		b.Write(it)
	}

	if got := target.Batches(); len(got) != 2 || got[0] != 3 || got[1] != 3 {
		t.Errorf("batches = %v, want [3 3]", got)
	}
	if b.Buffered() != 1 {
		t.Errorf("buffered = %d, want 1", b.Buffered())
	}
	for i := 0; i < 6; i++ {
		if !comps[i].Fired() {
			t.Errorf("item %d not completed after full flush", i)
		}
	}
	if comps[6].Fired() {
		t.Error("buffered item completed before flush")
	}
}

func TestBuffering_ExplicitFlush(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	b := newBuffering(t, target, BufferingConfig{BufferSize: 10})
	defer b.Close()

	items, comps := sinktest.Items(4)
	b.WriteBatch(items)

	first := sinktest.NewCompletion()
	b.Flush(first)
	if err := first.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v", err)
	}
	if got := target.Batches(); len(got) != 1 || got[0] != 4 {
		t.Errorf("batches = %v, want [4]", got)
	}
	for i, c := range comps {
		if c.Calls() != 1 {
			t.Errorf("item %d calls = %d, want 1", i, c.Calls())
		}
	}

	// Nothing buffered: pure pass-through to the target flush.
	second := sinktest.NewCompletion()
	b.Flush(second)
	if err := second.Wait(t, wait); err != nil {
		t.Fatalf("second flush err = %v", err)
	}
	if got := target.Batches(); len(got) != 1 {
		t.Errorf("batches = %v, want no extra batch", got)
	}
	if target.Flushes() != 2 {
		t.Errorf("target flushes = %d, want 2", target.Flushes())
	}
}

func TestBuffering_TimerFlushesPartialBuffer(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	b := newBuffering(t, target, BufferingConfig{BufferSize: 100, FlushTimeout: 20 * time.Millisecond})
	defer b.Close()

	item, c := sinktest.Item("lonely")
	b.Write(item)

	if err := c.Wait(t, wait); err != nil {
		t.Fatalf("err = %v", err)
	}
	if target.DeliveredCount() != 1 {
		t.Errorf("delivered = %d, want 1", target.DeliveredCount())
	}
}

func TestBuffering_SlidingTimeoutResetsOnWrite(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	b := newBuffering(t, target, BufferingConfig{BufferSize: 100, FlushTimeout: 80 * time.Millisecond, SlidingTimeout: true})
	defer b.Close()

	items, comps := sinktest.Items(4)
	for _, it := range items {
		b.Write(it)
		time.Sleep(30 * time.Millisecond)
	}
	// 120ms since the first write; sliding keeps pushing the deadline out.
	if target.ReceivedCount() != 0 {
		t.Fatalf("received = %d, want 0 while writes keep arriving", target.ReceivedCount())
	}

	for _, c := range comps {
		c.Wait(t, wait)
	}
	if got := target.Batches(); len(got) != 1 || got[0] != 4 {
		t.Errorf("batches = %v, want one batch of 4", got)
	}
}

func TestBuffering_FixedTimeoutRunsFromFirstEvent(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	b := newBuffering(t, target, BufferingConfig{BufferSize: 100, FlushTimeout: 60 * time.Millisecond, SlidingTimeout: false})
	defer b.Close()

	items, comps := sinktest.Items(6)
	for _, it := range items {
		b.Write(it)
		time.Sleep(20 * time.Millisecond)
	}

	for _, c := range comps {
		c.Wait(t, wait)
	}
	if got := target.Batches(); len(got) < 2 {
		t.Errorf("batches = %v, want the fixed timer to split the stream", got)
	}
}

func TestBuffering_CloseDrains(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	b := newBuffering(t, target, BufferingConfig{BufferSize: 10})

	items, comps := sinktest.Items(3)
	b.WriteBatch(items)
	if err := b.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	if target.DeliveredCount() != 3 {
		t.Errorf("delivered = %d, want 3", target.DeliveredCount())
	}
	for i, c := range comps {
		if !c.Fired() {
			t.Errorf("item %d not completed on close", i)
		}
	}
	if target.CloseCalls() != 1 {
		t.Errorf("target close calls = %d, want 1", target.CloseCalls())
	}
}
