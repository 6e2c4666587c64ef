// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package sinktest provides a scriptable in-memory sink for tests of
// wrappers, groups and the runtime.
package sinktest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/sink"
)

// ErrScripted is the default error returned by scripted failures.
var ErrScripted = errors.New("sinktest: scripted failure")

// Recorder records what it receives and fails, panics or completes late
// on demand. Configure it with the Set* methods; all accessors are safe for
// concurrent use.
type Recorder struct {
	*sink.Base

	mu             sync.Mutex
	received       []*event.LogEvent
	delivered      []*event.LogEvent
	batches        []int
	flushes        int
	initCalls      int
	closeCalls     int
	failNext       int
	failAlways     bool
	failErr        error
	initErr        error
	doubleComplete bool
	asyncComplete  bool
	panicValue     any
	delay          time.Duration
	changed        chan struct{}
}

// New creates a recorder. It still needs Initialize before it accepts
// events.
func New(name string) *Recorder {
	r := &Recorder{failErr: ErrScripted, changed: make(chan struct{}, 1)}
	r.Base = sink.NewBase(name, r)
	return r
}

// NewInitialized creates a recorder and initializes it.
func NewInitialized(t testing.TB, name string) *Recorder {
	t.Helper()
	r := New(name)
	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize(%s) error = %v", name, err)
	}
	return r
}

// FailNext makes the next n writes fail with err (ErrScripted if nil).
func (r *Recorder) FailNext(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
	if err != nil {
		r.failErr = err
	}
}

// FailAlways makes every write fail until cleared.
func (r *Recorder) FailAlways(on bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAlways = on
	if err != nil {
		r.failErr = err
	}
}

// FailInit makes the next Initialize fail with err.
func (r *Recorder) FailInit(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initErr = err
}

// CompleteTwice makes every write invoke its continuation twice.
func (r *Recorder) CompleteTwice(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doubleComplete = on
}

// CompleteAsync makes every write complete from a new goroutine.
func (r *Recorder) CompleteAsync(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asyncComplete = on
}

// PanicOnWrite makes every write panic with v; nil disables it.
func (r *Recorder) PanicOnWrite(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicValue = v
}

// SetDelay makes asynchronous completions wait d first.
func (r *Recorder) SetDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

// InitializeSink implements sink.Impl.
func (r *Recorder) InitializeSink(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initCalls++
	err := r.initErr
	r.initErr = nil
	return err
}

// WriteItems implements sink.BatchImpl.
func (r *Recorder) WriteItems(items []sink.Item) {
	r.mu.Lock()
	r.batches = append(r.batches, len(items))
	r.mu.Unlock()
	for _, it := range items {
		r.WriteItem(it)
	}
}

// WriteItem implements sink.Impl.
func (r *Recorder) WriteItem(item sink.Item) {
	r.mu.Lock()
	r.received = append(r.received, item.Event)
	if r.panicValue != nil {
		v := r.panicValue
		r.mu.Unlock()
		r.notify()
		panic(v)
	}

	var err error
	switch {
	case r.failAlways:
		err = r.failErr
	case r.failNext > 0:
		r.failNext--
		err = r.failErr
	default:
		r.delivered = append(r.delivered, item.Event)
	}
	twice, goAsync, delay := r.doubleComplete, r.asyncComplete, r.delay
	r.mu.Unlock()
	r.notify()

	complete := func() {
		item.Complete(err)
		if twice {
			item.Complete(err)
		}
	}
	if goAsync {
		go func() {
			if delay > 0 {
				time.Sleep(delay)
			}
			complete()
		}()
		return
	}
	complete()
}

// FlushSink implements sink.Impl.
func (r *Recorder) FlushSink(done async.Continuation) {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
	r.notify()
	done.Complete(nil)
}

// CloseSink implements sink.Impl.
func (r *Recorder) CloseSink() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeCalls++
	return nil
}

func (r *Recorder) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Received returns every event handed to the recorder, failed or not.
func (r *Recorder) Received() []*event.LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.LogEvent(nil), r.received...)
}

// Delivered returns the events that were written successfully.
func (r *Recorder) Delivered() []*event.LogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.LogEvent(nil), r.delivered...)
}

// Messages returns the messages of the delivered events.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.delivered))
	for i, ev := range r.delivered {
		out[i] = ev.Message
	}
	return out
}

// ReceivedCount returns how many events were handed to the recorder.
func (r *Recorder) ReceivedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// DeliveredCount returns how many events were written successfully.
func (r *Recorder) DeliveredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delivered)
}

// Batches returns the sizes of the batches received through WriteBatch.
func (r *Recorder) Batches() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.batches...)
}

// Flushes returns how many times the recorder was flushed.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// InitCalls returns how many times InitializeSink ran.
func (r *Recorder) InitCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initCalls
}

// CloseCalls returns how many times CloseSink ran.
func (r *Recorder) CloseCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCalls
}

// WaitReceived blocks until at least n events were received or the
// timeout passes. It reports whether the count was reached.
func (r *Recorder) WaitReceived(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.ReceivedCount() >= n {
			return true
		}
		select {
		case <-r.changed:
		case <-deadline.C:
			return r.ReceivedCount() >= n
		case <-time.After(5 * time.Millisecond):
		}
	}
}
