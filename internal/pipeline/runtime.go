// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sinks"
)

var (
	// ErrClosed is returned by a closed runtime.
	ErrClosed = errors.New("pipeline: runtime closed")

	// ErrNotFound is returned for an unknown sink name.
	ErrNotFound = errors.New("pipeline: sink not found")

	// ErrNotSpool is returned when replay is asked of a sink that is not a spool.
	ErrNotSpool = errors.New("pipeline: sink is not a spool")
)

// FailureFunc observes a delivery failure. It runs on whichever goroutine
// completed the event and must not block.
type FailureFunc func(ev *event.LogEvent, err error)

// Options are the collaborators of a Runtime.
type Options struct {
	// Registry resolves sink types. Nil means DefaultRegistry().
	Registry *Registry

	// Loggers is the logger registry the runtime serves. Nil creates a
	// private one.
	Loggers *LoggerRegistry

	// Sequencer stamps events. Nil creates a private one.
	Sequencer *event.Sequencer

	// OnFailure is called for every event that completes with an error.
	OnFailure FailureFunc
}

// SinkStatus describes one sink of the running graph.
type SinkStatus struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Parent string `json:"parent,omitempty"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

// Runtime routes events from named loggers to the sink graph. It owns the
// graph: New initializes it, Reconfigure replaces it and Close tears it
// down. All methods are safe for concurrent use.
type Runtime struct {
	id        uuid.UUID
	registry  *Registry
	loggers   *LoggerRegistry
	seq       *event.Sequencer
	onFailure FailureFunc
	log       zerolog.Logger

	// mu serializes Reconfigure and Close.
	mu         sync.Mutex
	current    atomic.Pointer[routing]
	settings   atomic.Pointer[config.RuntimeConfig]
	generation atomic.Uint64
	closed     atomic.Bool
}

// New builds the sink graph of cfg, initializes it and returns a runtime
// routing by cfg.Rules. When initialization fails the partly initialized
// graph is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Loggers == nil {
		opts.Loggers = NewLoggerRegistry()
	}
	if opts.Sequencer == nil {
		opts.Sequencer = event.NewSequencer()
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("runtime id: %w", err)
	}
	r := &Runtime{
		id:        id,
		registry:  opts.Registry,
		loggers:   opts.Loggers,
		seq:       opts.Sequencer,
		onFailure: opts.OnFailure,
		log:       logging.With().Str("component", "runtime").Str("runtime_id", id.String()).Logger(),
	}
	if err := r.loggers.bind(r); err != nil {
		return nil, err
	}

	rt, err := r.load(ctx, cfg)
	if err != nil {
		r.loggers.unbind(r)
		return nil, err
	}
	r.current.Store(rt)
	r.setSettings(cfg.Runtime)

	r.log.Info().
		Int("sinks", len(rt.graph.order)).
		Int("rules", len(rt.routes)).
		Msg("runtime started")
	return r, nil
}

// load builds, initializes and routes a new snapshot.
func (r *Runtime) load(ctx context.Context, cfg *config.Config) (*routing, error) {
	g, err := r.registry.Build(cfg.Sinks)
	if err != nil {
		return nil, err
	}
	routes, err := compileRoutes(cfg.Rules, g)
	if err != nil {
		return nil, err
	}

	initCtx := ctx
	if d := cfg.Runtime.InitTimeout; d > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := g.Initialize(initCtx); err != nil {
		if cerr := g.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Msg("closing partly initialized graph")
		}
		return nil, fmt.Errorf("initialize sinks: %w", err)
	}

	return &routing{
		generation: r.generation.Add(1),
		graph:      g,
		routes:     routes,
	}, nil
}

func (r *Runtime) setSettings(rc config.RuntimeConfig) {
	r.settings.Store(&rc)
}

// ID identifies this runtime instance in diagnostics.
func (r *Runtime) ID() string { return r.id.String() }

// Loggers returns the logger registry.
func (r *Runtime) Loggers() *LoggerRegistry { return r.loggers }

// Logger returns the logger called name.
func (r *Runtime) Logger(name string) *Logger { return r.loggers.Get(name) }

// Sequencer returns the sequencer stamping this runtime's events.
func (r *Runtime) Sequencer() *event.Sequencer { return r.seq }

// Generation counts successful configurations, starting at 1.
func (r *Runtime) Generation() uint64 {
	if rt := r.current.Load(); rt != nil {
		return rt.generation
	}
	return 0
}

func (r *Runtime) snapshot() *routing {
	if r.closed.Load() {
		return nil
	}
	return r.current.Load()
}

func (r *Runtime) closedErr() error {
	if r.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Closed reports whether Close has been called.
func (r *Runtime) Closed() bool { return r.closed.Load() }

// Log routes an already built event by its logger name.
func (r *Runtime) Log(ev *event.LogEvent) error {
	if ev == nil {
		return nil
	}
	return r.dispatch(r.loggers.Get(ev.LoggerName), ev)
}

// Dispatch routes ev and completes done once every target sink has
// completed it. done completes with nil when no rule matches and with
// ErrClosed on a closed runtime.
func (r *Runtime) Dispatch(ev *event.LogEvent, done async.Continuation) {
	done = async.Guard(done)
	rt := r.snapshot()
	if rt == nil {
		done.Complete(ErrClosed)
		return
	}
	r.deliver(rt, r.loggers.Get(ev.LoggerName), ev, done)
}

// dispatch delivers ev and applies ThrowOnFailure.
func (r *Runtime) dispatch(l *Logger, ev *event.LogEvent) error {
	rt := r.snapshot()
	if rt == nil {
		return ErrClosed
	}

	var (
		mu       sync.Mutex
		returned bool
		syncErr  error
	)
	r.deliver(rt, l, ev, async.Func(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if !returned {
			syncErr = err
		}
	}))

	mu.Lock()
	returned = true
	err := syncErr
	mu.Unlock()

	if err != nil && r.settings.Load().ThrowOnFailure {
		return err
	}
	return nil
}

func (r *Runtime) deliver(rt *routing, l *Logger, ev *event.LogEvent, done async.Continuation) {
	dest := targets(l.routesFor(rt), ev.Level)
	if len(dest) == 0 {
		metrics.EventsUnrouted.Inc()
		done.Complete(nil)
		return
	}
	metrics.EventsLogged.WithLabelValues(ev.Level.String()).Inc()

	finish := async.Guard(async.Func(func(err error) {
		if err != nil {
			r.reportFailure(ev, err)
		}
		done.Complete(err)
	}))

	if len(dest) == 1 {
		dest[0].Write(sink.NewItem(ev, finish))
		return
	}
	async.ForEachParallel(dest, finish, func(s sink.Sink, next async.Continuation) {
		s.Write(sink.NewItem(ev, next))
	})
}

func (r *Runtime) reportFailure(ev *event.LogEvent, err error) {
	metrics.DeliveryFailures.WithLabelValues(ev.LoggerName).Inc()
	r.log.Warn().
		Err(err).
		Str("logger", ev.LoggerName).
		Uint64("seq", ev.Sequence).
		Msg("event delivery failed")
	if r.onFailure != nil {
		r.onFailure(ev, err)
	}
}

// Flush flushes every root sink and waits until all have finished, the
// configured flush timeout passes or ctx is done.
func (r *Runtime) Flush(ctx context.Context) error {
	rt := r.snapshot()
	if rt == nil {
		return ErrClosed
	}
	return r.flushGraph(ctx, rt.graph)
}

func (r *Runtime) flushGraph(ctx context.Context, g *Graph) error {
	timeout := r.settings.Load().FlushTimeout
	return async.Await(ctx, func(next async.Continuation) {
		if timeout > 0 {
			next = async.WithTimeout(next, timeout)
		}
		g.Flush(next)
	})
}

// Reconfigure builds and initializes the graph of cfg and swaps it in.
// Events logged during the swap go to either the old or the new graph.
// The old graph is flushed and closed afterwards. When the new graph
// cannot be built or initialized the old one stays in place.
func (r *Runtime) Reconfigure(ctx context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	next, err := r.load(ctx, cfg)
	if err != nil {
		r.log.Error().Err(err).Msg("reconfiguration rejected, keeping current sinks")
		return err
	}
	prev := r.current.Swap(next)
	r.setSettings(cfg.Runtime)

	err = r.retire(ctx, prev.graph)
	r.log.Info().
		Uint64("generation", next.generation).
		Int("sinks", len(next.graph.order)).
		Dur("duration", time.Since(start)).
		Msg("runtime reconfigured")
	return err
}

// retire flushes and closes a graph that no longer receives events.
func (r *Runtime) retire(ctx context.Context, g *Graph) error {
	var errs []error
	if err := r.flushGraph(ctx, g); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := g.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

// Close flushes and closes the graph. Later calls return nil; every other
// method returns ErrClosed afterwards.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	rt := r.current.Load()
	err := r.retire(ctx, rt.graph)
	if err != nil {
		r.log.Warn().Err(err).Msg("runtime closed with errors")
	} else {
		r.log.Info().Msg("runtime closed")
	}
	return err
}

// Sink returns any sink of the current graph by name.
func (r *Runtime) Sink(name string) (sink.Sink, bool) {
	rt := r.snapshot()
	if rt == nil {
		return nil, false
	}
	n, ok := rt.graph.Node(name)
	if !ok {
		return nil, false
	}
	return n.Sink, true
}

// Status reports every sink of the current graph, children first.
func (r *Runtime) Status() []SinkStatus {
	rt := r.snapshot()
	if rt == nil {
		return nil
	}
	nodes := rt.graph.Nodes()
	out := make([]SinkStatus, 0, len(nodes))
	for _, n := range nodes {
		st := SinkStatus{Name: n.Name, Type: n.Type, Parent: n.Parent, State: "unknown"}
		if b, ok := n.Sink.(interface {
			State() sink.State
			InitErr() error
		}); ok {
			st.State = b.State().String()
			if err := b.InitErr(); err != nil {
				st.Error = err.Error()
			}
		}
		out = append(out, st)
	}
	return out
}

// ReplaySpool re-delivers the events persisted by the spool sink called
// spoolName to the top level sink called targetName, oldest first.
// Delivered events are removed from the spool.
func (r *Runtime) ReplaySpool(ctx context.Context, spoolName, targetName string) (int, error) {
	rt := r.snapshot()
	if rt == nil {
		return 0, ErrClosed
	}
	n, ok := rt.graph.Node(spoolName)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, spoolName)
	}
	sp, ok := n.Sink.(*sinks.Spool)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotSpool, spoolName)
	}
	target, ok := rt.graph.Root(targetName)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, targetName)
	}
	if target == n.Sink {
		return 0, fmt.Errorf("pipeline: cannot replay spool %q into itself", spoolName)
	}

	count, err := sp.ReplayTo(ctx, target)
	r.log.Info().
		Str("spool", spoolName).
		Str("target", targetName).
		Int("events", count).
		Err(err).
		Msg("spool replayed")
	return count, err
}
