// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/condition"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/group"
	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sinks"
	"github.com/tomtom215/sinkline/internal/wrapper"
)

var (
	// ErrUnknownType is returned when no factory is registered for a type.
	ErrUnknownType = errors.New("pipeline: unknown sink type")

	// ErrDuplicateType is returned when a type is registered twice.
	ErrDuplicateType = errors.New("pipeline: sink type already registered")
)

// Factory builds one node of the sink graph. children holds the already
// built target of a wrapper or the targets of a group, in order; it is
// empty for leaves.
type Factory func(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error)

// Registry maps configured type names to factories. Types are resolved
// when the graph is built; nothing is looked up while events flow.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a new registry holding every built-in sink type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for typ, f := range builtins {
		// Cannot collide on a fresh registry.
		_ = r.Register(typ, f)
	}
	return r
}

// Register adds a factory for typ.
func (r *Registry) Register(typ string, f Factory) error {
	if typ == "" || f == nil {
		return fmt.Errorf("pipeline: register %q: type and factory are required", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typ]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, typ)
	}
	r.factories[typ] = f
	return nil
}

// Lookup returns the factory for typ.
func (r *Registry) Lookup(typ string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typ]
	return f, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}

var builtins = map[string]Factory{
	config.TypeAsync:      buildAsync,
	config.TypeBuffering:  buildBuffering,
	config.TypeRetry:      buildRetry,
	config.TypeFilter:     buildFilter,
	config.TypePostFilter: buildPostFilter,
	config.TypeLimiting:   buildLimiting,
	config.TypeBreaker:    buildBreaker,

	config.TypeFailover:   buildFailover,
	config.TypeRoundRobin: buildRoundRobin,
	config.TypeRandom:     buildRandom,
	config.TypeSplit:      buildSplit,

	config.TypeConsole: buildConsole,
	config.TypeFile:    buildFile,
	config.TypeMemory:  buildMemory,
	config.TypeNull:    buildNull,
	config.TypePublish: buildPublish,
	config.TypeSpool:   buildSpool,
}

// optional returns the block or the zero value when it is absent.
func optional[T any](block *T, def T) T {
	if block == nil {
		return def
	}
	return *block
}

func only(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	if len(children) != 1 {
		return nil, fmt.Errorf("%s %q: want 1 target, got %d", cfg.Type, cfg.Name, len(children))
	}
	return children[0], nil
}

func buildAsync(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	return wrapper.NewAsync(cfg.Name, target, optional(cfg.Async, wrapper.DefaultAsyncConfig()))
}

func buildBuffering(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	return wrapper.NewBuffering(cfg.Name, target, optional(cfg.Buffering, wrapper.DefaultBufferingConfig()))
}

func buildRetry(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	return wrapper.NewRetry(cfg.Name, target, optional(cfg.Retry, wrapper.DefaultRetryConfig()))
}

func buildLimiting(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	return wrapper.NewLimiting(cfg.Name, target, optional(cfg.Limiting, wrapper.DefaultLimitingConfig()))
}

func buildBreaker(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	return wrapper.NewBreaker(cfg.Name, target, optional(cfg.Breaker, wrapper.DefaultBreakerConfig()))
}

func buildFilter(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	if cfg.Filter == nil {
		return nil, fmt.Errorf("filter %q: filter block required", cfg.Name)
	}

	var conds []condition.Condition
	if cfg.Filter.MinLevel != "" {
		level, err := event.ParseLevel(cfg.Filter.MinLevel)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", cfg.Name, err)
		}
		conds = append(conds, condition.MinLevel(level))
	}
	if cfg.Filter.Condition != "" {
		c, err := condition.Compile(cfg.Filter.Condition)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", cfg.Name, err)
		}
		conds = append(conds, c)
	}

	cond := condition.Always
	switch len(conds) {
	case 1:
		cond = conds[0]
	case 2:
		cond = condition.All(conds...)
	}
	return wrapper.NewFilter(cfg.Name, target, cond)
}

// compileOptional compiles expr, returning nil for an empty expression.
func compileOptional(expr string) (condition.Condition, error) {
	if expr == "" {
		return nil, nil
	}
	return condition.Compile(expr)
}

func buildPostFilter(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	target, err := only(cfg, children)
	if err != nil {
		return nil, err
	}
	pf := optional(cfg.PostFilter, config.PostFilterConfig{})

	def, err := compileOptional(pf.Default)
	if err != nil {
		return nil, fmt.Errorf("post_filter %q: %w", cfg.Name, err)
	}
	rules := make([]wrapper.PostFilterRule, 0, len(pf.Rules))
	for i, rc := range pf.Rules {
		exists, err := condition.Compile(rc.Exists)
		if err != nil {
			return nil, fmt.Errorf("post_filter %q rule %d: %w", cfg.Name, i, err)
		}
		filter, err := compileOptional(rc.Filter)
		if err != nil {
			return nil, fmt.Errorf("post_filter %q rule %d: %w", cfg.Name, i, err)
		}
		rules = append(rules, wrapper.PostFilterRule{Exists: exists, Filter: filter})
	}
	return wrapper.NewPostFilter(cfg.Name, target, def, rules)
}

func requireTargets(cfg config.SinkConfig, children []sink.Sink) error {
	if len(children) == 0 {
		return fmt.Errorf("%s %q: at least one target required", cfg.Type, cfg.Name)
	}
	return nil
}

func buildFailover(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	if err := requireTargets(cfg, children); err != nil {
		return nil, err
	}
	fo := optional(cfg.Failover, config.FailoverConfig{})
	return group.NewFailover(cfg.Name, children, fo.ReturnToFirstOnSuccess), nil
}

func buildRoundRobin(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	if err := requireTargets(cfg, children); err != nil {
		return nil, err
	}
	return group.NewRoundRobin(cfg.Name, children), nil
}

func buildRandom(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	if err := requireTargets(cfg, children); err != nil {
		return nil, err
	}
	return group.NewRandom(cfg.Name, children), nil
}

func buildSplit(cfg config.SinkConfig, children []sink.Sink) (sink.Sink, error) {
	if err := requireTargets(cfg, children); err != nil {
		return nil, err
	}
	return group.NewSplit(cfg.Name, children), nil
}

func buildConsole(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
	return sinks.NewConsole(cfg.Name, optional(cfg.Console, sinks.DefaultConsoleConfig()))
}

func buildFile(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
	if cfg.File == nil {
		return nil, fmt.Errorf("file %q: file block required", cfg.Name)
	}
	return sinks.NewFile(cfg.Name, *cfg.File)
}

func buildMemory(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
	return sinks.NewMemory(cfg.Name, optional(cfg.Memory, sinks.DefaultMemoryConfig()))
}

func buildNull(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
	return sinks.NewNull(cfg.Name), nil
}

func buildPublish(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
	if cfg.Publish == nil {
		return nil, fmt.Errorf("publish %q: publish block required", cfg.Name)
	}
	return sinks.NewNATSPublish(cfg.Name, *cfg.Publish)
}

func buildSpool(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
	if cfg.Spool == nil {
		return nil, fmt.Errorf("spool %q: spool block required", cfg.Name)
	}
	return sinks.NewSpool(cfg.Name, *cfg.Spool)
}
