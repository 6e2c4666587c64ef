// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/group"
	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sinks"
	"github.com/tomtom215/sinkline/internal/wrapper"
)

func TestDefaultRegistry_Types(t *testing.T) {
	t.Parallel()

	types := DefaultRegistry().Types()
	for _, want := range []string{
		config.TypeAsync, config.TypeBuffering, config.TypeRetry, config.TypeFilter,
		config.TypePostFilter, config.TypeLimiting, config.TypeBreaker,
		config.TypeFailover, config.TypeRoundRobin, config.TypeRandom, config.TypeSplit,
		config.TypeConsole, config.TypeFile, config.TypeMemory, config.TypeNull,
		config.TypePublish, config.TypeSpool,
	} {
		if !slices.Contains(types, want) {
			t.Errorf("Types() missing %q", want)
		}
	}
	if !slices.IsSorted(types) {
		t.Errorf("Types() = %v, want sorted", types)
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	f := func(cfg config.SinkConfig, _ []sink.Sink) (sink.Sink, error) {
		return sinks.NewNull(cfg.Name), nil
	}

	if err := r.Register("custom", f); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("custom", f); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("second Register() error = %v, want ErrDuplicateType", err)
	}
	if err := r.Register("", f); err == nil {
		t.Error("Register(\"\") error = nil, want error")
	}
	if err := r.Register("nil", nil); err == nil {
		t.Error("Register(nil factory) error = nil, want error")
	}
	if _, ok := r.Lookup("custom"); !ok {
		t.Error("Lookup(custom) = false, want true")
	}
	if _, ok := r.Lookup("console"); ok {
		t.Error("Lookup(console) on an empty registry = true, want false")
	}
}

func TestBuild_Tree(t *testing.T) {
	t.Parallel()

	cfgs := []config.SinkConfig{{
		Name: "main",
		Type: config.TypeAsync,
		Target: &config.SinkConfig{
			Name: "fallback",
			Type: config.TypeFailover,
			Targets: []config.SinkConfig{
				{Name: "mem", Type: config.TypeMemory},
				{Name: "discard", Type: config.TypeNull},
			},
		},
	}}

	g, err := DefaultRegistry().Build(cfgs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if roots := g.Roots(); len(roots) != 1 || roots[0].Name() != "main" {
		t.Fatalf("Roots() = %v, want [main]", roots)
	}
	if _, ok := g.Roots()[0].(*wrapper.Async); !ok {
		t.Errorf("root type = %T, want *wrapper.Async", g.Roots()[0])
	}

	var order []string
	for _, n := range g.Nodes() {
		order = append(order, n.Name)
	}
	if want := []string{"mem", "discard", "fallback", "main"}; !slices.Equal(order, want) {
		t.Errorf("Nodes() order = %v, want %v", order, want)
	}

	mem, ok := g.Node("mem")
	if !ok {
		t.Fatal("Node(mem) not found")
	}
	if mem.Parent != "fallback" || mem.Type != config.TypeMemory {
		t.Errorf("Node(mem) = %+v, want parent fallback, type memory", mem)
	}
	if _, ok := mem.Sink.(*sinks.Memory); !ok {
		t.Errorf("Node(mem).Sink = %T, want *sinks.Memory", mem.Sink)
	}

	fo, _ := g.Node("fallback")
	if targets := fo.Sink.(*group.Failover).Targets(); len(targets) != 2 {
		t.Errorf("len(failover targets) = %d, want 2", len(targets))
	}

	if _, ok := g.Root("mem"); ok {
		t.Error("Root(mem) = true, want false for a nested sink")
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfgs []config.SinkConfig
		want string
	}{
		{
			name: "unknown type",
			cfgs: []config.SinkConfig{{Name: "x", Type: "tape"}},
			want: "unknown sink type",
		},
		{
			name: "duplicate name",
			cfgs: []config.SinkConfig{{Name: "x", Type: "null"}, {Name: "x", Type: "null"}},
			want: `duplicate sink name "x"`,
		},
		{
			name: "wrapper without target",
			cfgs: []config.SinkConfig{{Name: "x", Type: "retry"}},
			want: "want 1 target, got 0",
		},
		{
			name: "group without targets",
			cfgs: []config.SinkConfig{{Name: "x", Type: "split"}},
			want: "at least one target required",
		},
		{
			name: "bad condition",
			cfgs: []config.SinkConfig{{
				Name:   "x",
				Type:   "filter",
				Filter: &config.FilterConfig{Condition: "level +"},
				Target: &config.SinkConfig{Name: "y", Type: "null"},
			}},
			want: `filter "x"`,
		},
		{
			name: "file without block",
			cfgs: []config.SinkConfig{{Name: "x", Type: "file"}},
			want: "file block required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DefaultRegistry().Build(tt.cfgs)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Build() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestBuild_FilterCombinesLevelAndCondition(t *testing.T) {
	t.Parallel()

	g, err := DefaultRegistry().Build([]config.SinkConfig{{
		Name: "errors",
		Type: config.TypeFilter,
		Filter: &config.FilterConfig{
			MinLevel:  "warn",
			Condition: `logger.startsWith("db.")`,
		},
		Target: &config.SinkConfig{Name: "mem", Type: config.TypeMemory},
	}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := g.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer g.Close()

	seq := event.NewSequencer()
	root := g.Roots()[0]
	for _, ev := range []*event.LogEvent{
		seq.New(event.Error, "db.pool", "kept"),
		seq.New(event.Info, "db.pool", "too quiet"),
		seq.New(event.Error, "http", "wrong logger"),
	} {
		root.Write(sink.NewItem(ev, async.Nop))
	}

	n, _ := g.Node("mem")
	lines := n.Sink.(*sinks.Memory).Lines()
	if len(lines) != 1 || !strings.Contains(lines[0], "kept") {
		t.Errorf("Lines() = %q, want only the kept event", lines)
	}
}

func TestBuild_PostFilter(t *testing.T) {
	t.Parallel()

	g, err := DefaultRegistry().Build([]config.SinkConfig{{
		Name: "pf",
		Type: config.TypePostFilter,
		PostFilter: &config.PostFilterConfig{
			Default: `severity >= 3`,
			Rules: []config.PostFilterRuleConfig{
				{Exists: `has_error`, Filter: ""},
			},
		},
		Target: &config.SinkConfig{Name: "mem", Type: config.TypeMemory},
	}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := g.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer g.Close()

	seq := event.NewSequencer()
	items := func(evs ...*event.LogEvent) []sink.Item {
		out := make([]sink.Item, len(evs))
		for i, ev := range evs {
			out[i] = sink.NewItem(ev, async.Nop)
		}
		return out
	}
	root := g.Roots()[0]
	n, _ := g.Node("mem")
	mem := n.Sink.(*sinks.Memory)

	root.WriteBatch(items(seq.New(event.Debug, "a", "quiet"), seq.New(event.Warn, "a", "loud")))
	if got := len(mem.Lines()); got != 1 {
		t.Errorf("lines after default filter = %d, want 1", got)
	}

	mem.Reset()
	root.WriteBatch(items(
		seq.New(event.Debug, "a", "context"),
		seq.NewWith(event.Error, "a", errors.New("boom"), nil, "failure"),
	))
	if got := len(mem.Lines()); got != 2 {
		t.Errorf("lines when a rule triggers = %d, want 2", got)
	}
}
