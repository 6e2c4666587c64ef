// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/queue"
	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sink/sinktest"
)

const wait = 2 * time.Second

// idle is long enough that the background loop only runs when woken by
// Flush.
const idle = time.Hour

func newAsync(t *testing.T, target *sinktest.Recorder, cfg AsyncConfig) *Async {
	t.Helper()
	a, err := NewAsync("async", target, cfg)
	if err != nil {
		t.Fatalf("NewAsync error = %v", err)
	}
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	return a
}

func TestNewAsync_RequiresTarget(t *testing.T) {
	t.Parallel()

	if _, err := NewAsync("a", nil, AsyncConfig{}); !errors.Is(err, ErrNoTarget) {
		t.Errorf("err = %v, want ErrNoTarget", err)
	}
}

func TestAsync_Defaults(t *testing.T) {
	t.Parallel()

	a, err := NewAsync("a", sinktest.New("t"), AsyncConfig{})
	if err != nil {
		t.Fatalf("NewAsync error = %v", err)
	}
	cfg := a.Config()
	if cfg.QueueLimit != 10000 || cfg.BatchSize != 100 || cfg.TimeToSleep != 50*time.Millisecond {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Overflow != queue.Discard {
		t.Errorf("Overflow = %v, want discard", cfg.Overflow)
	}
}

func TestAsync_ForwardsInBatches(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{BatchSize: 10, TimeToSleep: 5 * time.Millisecond})
	defer a.Close()

	items, comps := sinktest.Items(25)
	for _, it := range items {
		a.Write(it)
	}
	for i, c := range comps {
		if err := c.Wait(t, wait); err != nil {
			t.Fatalf("item %d err = %v", i, err)
		}
	}

	msgs := target.Messages()
	if len(msgs) != 25 {
		t.Fatalf("delivered = %d, want 25", len(msgs))
	}
	for i, m := range msgs {
		if want := items[i].Event.Message; m != want {
			t.Errorf("message[%d] = %q, want %q (FIFO)", i, m, want)
		}
	}
	for _, n := range target.Batches() {
		if n > 10 {
			t.Errorf("batch size %d exceeds 10", n)
		}
	}
	if s := a.Stats(); s.Forwarded != 25 || s.Enqueued != 25 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAsync_FlushDrainsQueueThenFlushesTarget(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{BatchSize: 2, TimeToSleep: idle})
	defer a.Close()

	items, comps := sinktest.Items(5)
	a.WriteBatch(items)
	if target.ReceivedCount() != 0 {
		t.Fatalf("received = %d before flush, want 0", target.ReceivedCount())
	}

	flushed := sinktest.NewCompletion()
	a.Flush(flushed)
	if err := flushed.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v", err)
	}

	if target.DeliveredCount() != 5 {
		t.Errorf("delivered = %d, want 5", target.DeliveredCount())
	}
	if target.Flushes() != 1 {
		t.Errorf("target flushes = %d, want 1", target.Flushes())
	}
	for i, c := range comps {
		if c.Calls() != 1 {
			t.Errorf("item %d calls = %d, want 1", i, c.Calls())
		}
	}
}

func TestAsync_CloseDoesNotDrain(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{TimeToSleep: idle})

	items, comps := sinktest.Items(3)
	for _, it := range items {
		a.Write(it)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if target.ReceivedCount() != 0 {
		t.Errorf("received = %d, want 0 after close", target.ReceivedCount())
	}
	for i, c := range comps {
		if c.Fired() {
			t.Errorf("item %d continuation fired, want abandoned", i)
		}
	}
	if target.CloseCalls() != 1 {
		t.Errorf("target close calls = %d, want 1", target.CloseCalls())
	}
}

func TestAsync_DiscardCompletesDroppedEvent(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{QueueLimit: 2, Overflow: queue.Discard, TimeToSleep: idle})
	defer a.Close()

	items, comps := sinktest.Items(3)
	for _, it := range items {
		a.Write(it)
	}

	if !comps[0].Fired() || comps[0].Err() != nil {
		t.Errorf("dropped event should complete with nil, fired=%v err=%v", comps[0].Fired(), comps[0].Err())
	}
	if got := a.Stats().Discarded; got != 1 {
		t.Errorf("discarded = %d, want 1", got)
	}

	flushed := sinktest.NewCompletion()
	a.Flush(flushed)
	if err := flushed.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v", err)
	}
	msgs := target.Messages()
	if len(msgs) != 2 || msgs[0] != items[1].Event.Message || msgs[1] != items[2].Event.Message {
		t.Errorf("delivered = %v, want the two newest events", msgs)
	}
}

func TestAsync_TargetFailureReachesContinuation(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	target.FailAlways(true, nil)
	a := newAsync(t, target, AsyncConfig{TimeToSleep: idle})
	defer a.Close()

	item, c := sinktest.Item("doomed")
	a.Write(item)

	flushed := sinktest.NewCompletion()
	a.Flush(flushed)
	if err := flushed.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v, want nil", err)
	}
	if err := c.Wait(t, wait); !errors.Is(err, sinktest.ErrScripted) {
		t.Errorf("item err = %v, want ErrScripted", err)
	}
}

func TestAsync_ExactlyOnceWithMisbehavingTarget(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	target.CompleteTwice(true)
	target.CompleteAsync(true)
	a := newAsync(t, target, AsyncConfig{BatchSize: 3, TimeToSleep: time.Millisecond})
	defer a.Close()

	items, comps := sinktest.Items(10)
	a.WriteBatch(items)
	for _, c := range comps {
		c.Wait(t, wait)
	}
	time.Sleep(20 * time.Millisecond)
	for i, c := range comps {
		if c.Calls() != 1 {
			t.Errorf("item %d calls = %d, want 1", i, c.Calls())
		}
	}
}

func TestAsync_BlockPolicyWaitsForConsumer(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{QueueLimit: 4, Overflow: queue.Block, BatchSize: 2, TimeToSleep: time.Millisecond})
	defer a.Close()

	items, comps := sinktest.Items(50)
	for _, it := range items {
		a.Write(it)
	}
	for i, c := range comps {
		if err := c.Wait(t, wait); err != nil {
			t.Fatalf("item %d err = %v", i, err)
		}
	}
	if a.Stats().Discarded != 0 {
		t.Errorf("discarded = %d, want 0 under block", a.Stats().Discarded)
	}
	if target.DeliveredCount() != 50 {
		t.Errorf("delivered = %d, want 50", target.DeliveredCount())
	}
}

// fillAndBlock writes items[0] into a one-slot blocking queue and then
// writes items[1] from a goroutine. The returned channel closes once the
// second write returns.
func fillAndBlock(t *testing.T, a *Async, items []sink.Item) <-chan struct{} {
	t.Helper()
	a.Write(items[0])
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		a.Write(items[1])
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-returned:
		t.Fatal("second write returned with the queue full")
	default:
	}
	return returned
}

func TestAsync_FlushWhileProducerBlocked(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{QueueLimit: 1, Overflow: queue.Block, TimeToSleep: idle})
	defer a.Close()

	items, comps := sinktest.Items(2)
	returned := fillAndBlock(t, a, items)

	flushed := sinktest.NewCompletion()
	a.Flush(flushed)
	if err := flushed.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v, want nil", err)
	}
	select {
	case <-returned:
	case <-time.After(wait):
		t.Fatal("producer still blocked after flush")
	}
	if err := comps[0].Wait(t, wait); err != nil {
		t.Errorf("item 0 err = %v, want nil", err)
	}

	again := sinktest.NewCompletion()
	a.Flush(again)
	again.Wait(t, wait)
	if err := comps[1].Wait(t, wait); err != nil {
		t.Errorf("item 1 err = %v, want nil", err)
	}
}

func TestAsync_CloseReleasesBlockedProducer(t *testing.T) {
	t.Parallel()

	target := sinktest.New("target")
	a := newAsync(t, target, AsyncConfig{QueueLimit: 1, Overflow: queue.Block, TimeToSleep: idle})

	items, comps := sinktest.Items(2)
	returned := fillAndBlock(t, a, items)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		a.Close()
	}()
	for name, ch := range map[string]<-chan struct{}{"Close": closed, "producer": returned} {
		select {
		case <-ch:
		case <-time.After(wait):
			t.Fatalf("%s still blocked", name)
		}
	}
	if comps[1].Fired() {
		t.Errorf("abandoned item completed with %v", comps[1].Err())
	}
}
