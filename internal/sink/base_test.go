// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sink_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sink/sinktest"
)

const wait = 2 * time.Second

func TestBase_WriteBeforeInitializeIsNoop(t *testing.T) {
	t.Parallel()

	r := sinktest.New("pre-init")
	item, c := sinktest.Item("hello")
	r.Write(item)

	if !c.Fired() {
		t.Fatal("continuation should complete synchronously before Initialize")
	}
	if err := c.Err(); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if r.ReceivedCount() != 0 {
		t.Errorf("received = %d, want 0", r.ReceivedCount())
	}
}

func TestBase_InitErrorIsReplayed(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such directory")
	r := sinktest.New("broken")
	r.FailInit(cause)

	err := r.Initialize(context.Background())
	var initErr *sink.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("Initialize error = %v, want *sink.InitError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Initialize error should wrap the cause")
	}

	item, c := sinktest.Item("lost")
	r.Write(item)
	if got := c.Err(); !errors.Is(got, cause) {
		t.Errorf("write err = %v, want replayed init error", got)
	}

	flushed := sinktest.NewCompletion()
	r.Flush(flushed)
	if got := flushed.Err(); !errors.Is(got, cause) {
		t.Errorf("flush err = %v, want replayed init error", got)
	}
	if r.InitCalls() != 1 {
		t.Errorf("init calls = %d, want 1 (no implicit retry)", r.InitCalls())
	}

	// A later Initialize retries and clears the cached error.
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize error = %v", err)
	}
	item, c = sinktest.Item("kept")
	r.Write(item)
	if err := c.Err(); err != nil {
		t.Errorf("write after re-init err = %v, want nil", err)
	}
}

func TestBase_CloseIsTerminal(t *testing.T) {
	t.Parallel()

	r := sinktest.NewInitialized(t, "closing")
	if err := r.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close error = %v", err)
	}
	if r.CloseCalls() != 1 {
		t.Errorf("close calls = %d, want 1", r.CloseCalls())
	}

	item, c := sinktest.Item("after close")
	r.Write(item)
	if !c.Fired() || c.Err() != nil {
		t.Errorf("write after close should succeed as a no-op, got fired=%v err=%v", c.Fired(), c.Err())
	}
	if r.ReceivedCount() != 0 {
		t.Errorf("received = %d, want 0", r.ReceivedCount())
	}
	if err := r.Initialize(context.Background()); !errors.Is(err, sink.ErrClosed) {
		t.Errorf("Initialize after Close = %v, want ErrClosed", err)
	}
}

func TestBase_CloseUninitializedSkipsHook(t *testing.T) {
	t.Parallel()

	r := sinktest.New("never-opened")
	if err := r.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if r.CloseCalls() != 0 {
		t.Errorf("close calls = %d, want 0", r.CloseCalls())
	}
	if r.State() != sink.StateClosed {
		t.Errorf("State = %v, want closed", r.State())
	}
}

func TestBase_GuardsDoubleCompletion(t *testing.T) {
	t.Parallel()

	r := sinktest.NewInitialized(t, "twice")
	r.CompleteTwice(true)

	item, c := sinktest.Item("once please")
	r.Write(item)

	if c.Calls() != 1 {
		t.Errorf("calls = %d, want 1", c.Calls())
	}
}

func TestBase_PanicBecomesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("driver exploded")
	r := sinktest.NewInitialized(t, "panicky")
	r.PanicOnWrite(boom)

	item, c := sinktest.Item("x")
	r.Write(item)
	if got := c.Err(); got != boom {
		t.Errorf("err = %v, want %v", got, boom)
	}

	items, comps := sinktest.Items(3)
	r.WriteBatch(items)
	for i, comp := range comps {
		if comp.Calls() != 1 {
			t.Errorf("item %d calls = %d, want 1", i, comp.Calls())
		}
		if comp.Err() != boom {
			t.Errorf("item %d err = %v, want %v", i, comp.Err(), boom)
		}
	}
}

func TestBase_WriteBatchUsesBatchHook(t *testing.T) {
	t.Parallel()

	r := sinktest.NewInitialized(t, "batched")
	items, comps := sinktest.Items(5)
	r.WriteBatch(items)

	if got := r.Batches(); len(got) != 1 || got[0] != 5 {
		t.Errorf("batches = %v, want [5]", got)
	}
	for i, comp := range comps {
		if err := comp.Wait(t, wait); err != nil {
			t.Errorf("item %d err = %v", i, err)
		}
	}
	msgs := r.Messages()
	for i, m := range msgs {
		if want := items[i].Event.Message; m != want {
			t.Errorf("message[%d] = %q, want %q", i, m, want)
		}
	}
}

func TestBase_ConcurrentWriteAndClose(t *testing.T) {
	t.Parallel()

	r := sinktest.NewInitialized(t, "racy")
	items, comps := sinktest.Items(200)

	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Write(it)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.Close()
	}()
	wg.Wait()

	for i, comp := range comps {
		if comp.Calls() != 1 {
			t.Fatalf("item %d calls = %d, want 1", i, comp.Calls())
		}
	}
}

func TestCloseAll_Aggregates(t *testing.T) {
	t.Parallel()

	a := sinktest.NewInitialized(t, "a")
	b := sinktest.NewInitialized(t, "b")
	if err := sink.CloseAll(a, nil, b); err != nil {
		t.Fatalf("CloseAll error = %v", err)
	}
	if a.CloseCalls() != 1 || b.CloseCalls() != 1 {
		t.Errorf("close calls = %d/%d, want 1/1", a.CloseCalls(), b.CloseCalls())
	}
}

func TestFlushAll(t *testing.T) {
	t.Parallel()

	a := sinktest.NewInitialized(t, "a")
	b := sinktest.NewInitialized(t, "b")
	done := sinktest.NewCompletion()
	sink.FlushAll([]sink.Sink{a, b}, done)

	if err := done.Wait(t, wait); err != nil {
		t.Fatalf("FlushAll err = %v", err)
	}
	if a.Flushes() != 1 || b.Flushes() != 1 {
		t.Errorf("flushes = %d/%d, want 1/1", a.Flushes(), b.Flushes())
	}
}

// gatedSink blocks every write until release is closed.
type gatedSink struct {
	*sink.Base
	entered chan struct{}
	release chan struct{}
}

func newGatedSink() *gatedSink {
	g := &gatedSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	g.Base = sink.NewBase("gated", g)
	return g
}

func (g *gatedSink) ConcurrentWrites() bool               { return true }
func (g *gatedSink) InitializeSink(context.Context) error { return nil }
func (g *gatedSink) FlushSink(done async.Continuation)    { done.Complete(nil) }
func (g *gatedSink) CloseSink() error                     { return nil }

func (g *gatedSink) WriteItem(item sink.Item) {
	g.entered <- struct{}{}
	<-g.release
	item.Complete(nil)
}

func TestBase_ConcurrentImplWritesOutsideLock(t *testing.T) {
	t.Parallel()

	g := newGatedSink()
	if err := g.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	defer g.Close()

	item, c := sinktest.Item("held")
	go g.Write(item)
	select {
	case <-g.entered:
	case <-time.After(wait):
		t.Fatal("write never reached the sink")
	}

	flushed := sinktest.NewCompletion()
	g.Flush(flushed)
	if err := flushed.Wait(t, wait); err != nil {
		t.Errorf("flush err = %v, want nil", err)
	}

	close(g.release)
	if err := c.Wait(t, wait); err != nil {
		t.Errorf("write err = %v, want nil", err)
	}
}
