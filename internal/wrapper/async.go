// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/queue"
	"github.com/tomtom215/sinkline/internal/sink"
)

// ErrFlushAborted completes flush requests that were still pending when
// the async wrapper was closed.
var ErrFlushAborted = errors.New("wrapper: async sink closed before flush completed")

// AsyncConfig configures an Async wrapper.
type AsyncConfig struct {
	// QueueLimit is the queue capacity.
	QueueLimit int `koanf:"queue_limit" validate:"gte=0"`

	// Overflow is applied when the queue is full.
	Overflow queue.OverflowPolicy `koanf:"overflow"`

	// BatchSize is the maximum number of events forwarded per iteration.
	BatchSize int `koanf:"batch_size" validate:"gte=0"`

	// TimeToSleep is the pause between iterations.
	TimeToSleep time.Duration `koanf:"time_to_sleep" validate:"gte=0"`
}

// DefaultAsyncConfig returns the default async wrapper configuration.
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		QueueLimit:  10000,
		Overflow:    queue.Discard,
		BatchSize:   100,
		TimeToSleep: 50 * time.Millisecond,
	}
}

func (c AsyncConfig) withDefaults() AsyncConfig {
	d := DefaultAsyncConfig()
	if c.QueueLimit <= 0 {
		c.QueueLimit = d.QueueLimit
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.TimeToSleep <= 0 {
		c.TimeToSleep = d.TimeToSleep
	}
	return c
}

// AsyncStats holds runtime statistics for monitoring.
type AsyncStats struct {
	Enqueued    int64 // Events accepted into the queue
	Discarded   int64 // Events dropped on overflow
	Forwarded   int64 // Events handed to the target
	Batches     int64 // Non-empty iterations
	LoopFaults  int64 // Faults recovered in the background loop
	QueueLength int   // Current queue length
}

// Async decouples producers from a slow sink. Writes go into a bounded
// queue; one background goroutine per wrapper forwards them to the target
// in batches, pausing TimeToSleep between iterations.
//
// Close stops the loop without draining. Events still queued at that point
// are never delivered and their continuations never fire. Call Flush first
// for an orderly shutdown.
type Async struct {
	*sink.Base
	target sink.Sink
	cfg    AsyncConfig
	queue  *queue.Bounded[sink.Item]

	flushMu  sync.Mutex
	flushers []async.Continuation

	wake     chan struct{}
	stopChan chan struct{}
	doneChan chan struct{}

	// life ends when the sink closes and releases producers blocked on a
	// full queue.
	life   context.Context
	cancel context.CancelFunc

	enqueued   atomic.Int64
	discarded  atomic.Int64
	forwarded  atomic.Int64
	batches    atomic.Int64
	loopFaults atomic.Int64
}

// NewAsync wraps target.
func NewAsync(name string, target sink.Sink, cfg AsyncConfig) (*Async, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	a := &Async{
		target: target,
		cfg:    cfg,
		queue:  queue.New[sink.Item](cfg.QueueLimit, cfg.Overflow),
		wake:   make(chan struct{}, 1),
	}
	a.Base = sink.NewBase(name, a)
	return a, nil
}

// Target returns the wrapped sink.
func (a *Async) Target() sink.Sink { return a.target }

// Config returns the effective configuration.
func (a *Async) Config() AsyncConfig { return a.cfg }

// Stats returns current runtime statistics.
func (a *Async) Stats() AsyncStats {
	return AsyncStats{
		Enqueued:    a.enqueued.Load(),
		Discarded:   a.discarded.Load(),
		Forwarded:   a.forwarded.Load(),
		Batches:     a.batches.Load(),
		LoopFaults:  a.loopFaults.Load(),
		QueueLength: a.queue.Len(),
	}
}

// InitializeSink initializes the target and starts the background loop.
func (a *Async) InitializeSink(ctx context.Context) error {
	if err := sink.InitializeAll(ctx, a.target); err != nil {
		return err
	}
	a.life, a.cancel = context.WithCancel(context.Background())
	a.stopChan = make(chan struct{})
	a.doneChan = make(chan struct{})
	go a.loop(a.stopChan, a.doneChan)
	return nil
}

// ConcurrentWrites reports that writes run outside the sink lock. Under
// the Block policy a producer waits for the loop without holding up Flush
// or Close.
func (a *Async) ConcurrentWrites() bool { return true }

// WriteItem enqueues the item according to the overflow policy.
func (a *Async) WriteItem(item sink.Item) {
	name := a.Name()
	if a.queue.Len() >= a.cfg.QueueLimit {
		metrics.QueueOverflow.WithLabelValues(name, a.cfg.Overflow.String()).Inc()
		if a.cfg.Overflow != queue.Discard {
			a.Log().Debug().
				Str("policy", a.cfg.Overflow.String()).
				Int("limit", a.cfg.QueueLimit).
				Msg("async queue at capacity")
		}
	}

	old, dropped, err := a.queue.EnqueueContext(a.life, item)
	if err != nil {
		// Closed while waiting for a slot: abandoned like any event queued
		// at close.
		a.Log().Debug().Uint64("seq", item.Event.Sequence).Msg("async sink closed while producer was blocked")
		return
	}
	a.enqueued.Add(1)
	metrics.QueueDepth.WithLabelValues(name).Set(float64(a.queue.Len()))

	if dropped {
		a.discarded.Add(1)
		a.Log().Warn().
			Int("limit", a.cfg.QueueLimit).
			Uint64("dropped_seq", old.Event.Sequence).
			Msg("async queue overflow, discarded oldest event")
		old.Complete(nil)
	}
}

// WriteItems enqueues every item in order.
func (a *Async) WriteItems(items []sink.Item) {
	for _, it := range items {
		a.WriteItem(it)
	}
}

// FlushSink asks the loop to drain what is queued now, then flush the
// target. done fires once the target flush completes.
func (a *Async) FlushSink(done async.Continuation) {
	a.flushMu.Lock()
	a.flushers = append(a.flushers, done)
	a.flushMu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// CloseSink stops the background loop and closes the target. Queued
// events are abandoned.
func (a *Async) CloseSink() error {
	a.cancel()
	close(a.stopChan)
	<-a.doneChan
	a.queue.Shutdown()

	if n := a.queue.Len(); n > 0 {
		a.Log().Warn().Int("abandoned", n).Msg("async sink closed with queued events")
	}
	metrics.QueueDepth.WithLabelValues(a.Name()).Set(0)

	for _, f := range a.takeFlushers() {
		f.Complete(ErrFlushAborted)
	}
	return a.target.Close()
}

func (a *Async) takeFlushers() []async.Continuation {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()
	f := a.flushers
	a.flushers = nil
	return f
}

// loop is the single background consumer.
func (a *Async) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(a.cfg.TimeToSleep)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-a.wake:
		case <-timer.C:
		}

		a.iterate(stop)
		timer.Reset(a.cfg.TimeToSleep)
	}
}

// iterate forwards one batch, or drains the queue when a flush is pending.
// Faults are contained here so the loop keeps running.
func (a *Async) iterate(stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			a.loopFaults.Add(1)
			metrics.AsyncLoopFaults.WithLabelValues(a.Name()).Inc()
			a.Log().Error().
				Err(async.FromPanic(r)).
				Msg("async background loop fault")
		}
	}()

	flushers := a.takeFlushers()
	if len(flushers) == 0 {
		a.forwardBatch(a.cfg.BatchSize)
		return
	}

	// Drain only what is queued now; producers may keep adding.
	remaining := a.queue.Len()
	for remaining > 0 {
		select {
		case <-stop:
			a.restoreFlushers(flushers)
			return
		default:
		}
		n := a.forwardBatch(min(a.cfg.BatchSize, remaining))
		if n == 0 {
			break
		}
		remaining -= n
	}

	a.target.Flush(async.Func(func(err error) {
		for _, f := range flushers {
			f.Complete(err)
		}
	}))
}

// restoreFlushers puts back flush requests interrupted by Close so that
// CloseSink completes them.
func (a *Async) restoreFlushers(f []async.Continuation) {
	a.flushMu.Lock()
	a.flushers = append(f, a.flushers...)
	a.flushMu.Unlock()
}

// forwardBatch hands up to max queued items to the target and returns how
// many were forwarded.
func (a *Async) forwardBatch(max int) int {
	batch := a.queue.DequeueBatch(max)
	metrics.QueueDepth.WithLabelValues(a.Name()).Set(float64(a.queue.Len()))
	if len(batch) == 0 {
		return 0
	}

	a.batches.Add(1)
	a.forwarded.Add(int64(len(batch)))
	metrics.AsyncBatchSize.WithLabelValues(a.Name()).Observe(float64(len(batch)))

	if err := async.Safe(func() { a.target.WriteBatch(batch) }); err != nil {
		sink.CompleteAll(batch, fmt.Errorf("async target %s: %w", a.target.Name(), err))
	}
	return len(batch)
}
