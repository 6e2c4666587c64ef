// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package pipeline

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/sink"
)

// route is a compiled routing rule.
type route struct {
	pattern  string
	glob     string
	minLevel event.Level
	sinks    []sink.Sink
	final    bool
}

// routing is an immutable snapshot of the graph and its rules. A
// reconfiguration swaps the whole snapshot.
type routing struct {
	generation uint64
	graph      *Graph
	routes     []route
}

// loggerGlob turns a dotted logger pattern into a doublestar pattern, so
// that "*" matches one name segment and "**" any number of segments.
func loggerGlob(pattern string) string {
	return strings.ReplaceAll(pattern, ".", "/")
}

func compileRoutes(rules []config.RuleConfig, g *Graph) ([]route, error) {
	routes := make([]route, 0, len(rules))
	for i, rc := range rules {
		glob := loggerGlob(rc.Logger)
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("rule %d: invalid logger pattern %q", i, rc.Logger)
		}
		rt := route{
			pattern:  rc.Logger,
			glob:     glob,
			minLevel: rc.MinLevel,
			final:    rc.Final,
		}
		for _, name := range rc.Sinks {
			s, ok := g.Root(name)
			if !ok {
				return nil, fmt.Errorf("rule %d: %q is not a top level sink", i, name)
			}
			rt.sinks = append(rt.sinks, s)
		}
		routes = append(routes, rt)
	}
	return routes, nil
}

// matchRoutes returns the routes whose pattern matches the logger name,
// in rule order. Levels are checked per event.
func (rt *routing) matchRoutes(logger string) []*route {
	name := loggerGlob(logger)
	var matched []*route
	for i := range rt.routes {
		r := &rt.routes[i]
		// Patterns were validated when compiled.
		if ok, _ := doublestar.Match(r.glob, name); ok {
			matched = append(matched, r)
		}
	}
	return matched
}

// targets returns the distinct root sinks an event at level reaches
// through the matched routes.
func targets(matched []*route, level event.Level) []sink.Sink {
	if level >= event.Off {
		return nil
	}
	var out []sink.Sink
	seen := make(map[sink.Sink]bool)
	for _, r := range matched {
		if level < r.minLevel {
			continue
		}
		for _, s := range r.sinks {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		if r.final {
			break
		}
	}
	return out
}
