// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/sink"
)

// Node is one built sink together with where it sits in the tree.
type Node struct {
	Name   string
	Type   string
	Parent string
	Sink   sink.Sink
}

// Graph is a built sink forest. Roots are the top level sinks rules route
// to; Nodes indexes every sink of the forest by name.
type Graph struct {
	roots []sink.Sink
	nodes map[string]Node
	order []string
}

// Build constructs the sink forest described by cfgs. Children are built
// before their parents. Nothing is initialized.
func (r *Registry) Build(cfgs []config.SinkConfig) (*Graph, error) {
	g := &Graph{nodes: make(map[string]Node)}
	for _, c := range cfgs {
		s, err := r.build(c, "", g)
		if err != nil {
			return nil, err
		}
		g.roots = append(g.roots, s)
	}
	return g, nil
}

func (r *Registry) build(cfg config.SinkConfig, parent string, g *Graph) (sink.Sink, error) {
	if _, dup := g.nodes[cfg.Name]; dup {
		return nil, fmt.Errorf("pipeline: duplicate sink name %q", cfg.Name)
	}
	factory, ok := r.Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %q (sink %q)", ErrUnknownType, cfg.Type, cfg.Name)
	}

	// Reserve the name so children cannot reuse it.
	g.nodes[cfg.Name] = Node{Name: cfg.Name, Type: cfg.Type, Parent: parent}

	var children []sink.Sink
	if cfg.Target != nil {
		child, err := r.build(*cfg.Target, cfg.Name, g)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	for _, tc := range cfg.Targets {
		child, err := r.build(tc, cfg.Name, g)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	s, err := factory(cfg, children)
	if err != nil {
		return nil, fmt.Errorf("build sink %q: %w", cfg.Name, err)
	}
	g.nodes[cfg.Name] = Node{Name: cfg.Name, Type: cfg.Type, Parent: parent, Sink: s}
	g.order = append(g.order, cfg.Name)
	return s, nil
}

// Roots returns the top level sinks in configuration order.
func (g *Graph) Roots() []sink.Sink {
	return append([]sink.Sink(nil), g.roots...)
}

// Root returns the top level sink called name.
func (g *Graph) Root(name string) (sink.Sink, bool) {
	for _, s := range g.roots {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Node returns any sink of the forest by name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns every node, children before parents.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Initialize initializes every root. Roots initialize their own children.
// All roots are attempted; failures are aggregated.
func (g *Graph) Initialize(ctx context.Context) error {
	var errs []error
	for _, s := range g.roots {
		if err := s.Initialize(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return async.Aggregate(errs)
}

// Flush flushes every root in parallel.
func (g *Graph) Flush(done async.Continuation) {
	sink.FlushAll(g.roots, done)
}

// Close closes every root. Roots close their own children.
func (g *Graph) Close() error {
	return sink.CloseAll(g.roots...)
}
