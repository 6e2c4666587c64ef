// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package config

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tomtom215/sinkline/internal/condition"
	"github.com/tomtom215/sinkline/internal/validation"
)

// Validate checks field constraints with the validator and then the
// cross-field rules the tags cannot express: unique sink names, child
// arity per sink type, required option blocks, compilable conditions and
// rules that reference existing top level sinks.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	var errs []error
	seen := make(map[string]string)
	for i := range c.Sinks {
		errs = append(errs, validateSink(&c.Sinks[i], fmt.Sprintf("sinks[%d]", i), seen)...)
	}

	roots := make(map[string]bool, len(c.Sinks))
	for _, s := range c.Sinks {
		roots[s.Name] = true
	}
	for i, r := range c.Rules {
		path := fmt.Sprintf("rules[%d]", i)
		if !doublestar.ValidatePattern(r.Logger) {
			errs = append(errs, fmt.Errorf("%s.logger: invalid pattern %q", path, r.Logger))
		}
		for _, name := range r.Sinks {
			if !roots[name] {
				errs = append(errs, fmt.Errorf("%s.sinks: %q is not a top level sink", path, name))
			}
		}
	}

	return errors.Join(errs...)
}

func validateSink(s *SinkConfig, path string, seen map[string]string) []error {
	var errs []error
	if prev, dup := seen[s.Name]; dup {
		errs = append(errs, fmt.Errorf("%s.name: %q already used at %s", path, s.Name, prev))
	} else {
		seen[s.Name] = path
	}

	switch KindOf(s.Type) {
	case KindUnknown:
		return append(errs, fmt.Errorf("%s.type: unknown sink type %q", path, s.Type))
	case KindLeaf:
		if s.Target != nil || len(s.Targets) > 0 {
			errs = append(errs, fmt.Errorf("%s: %s sink takes no targets", path, s.Type))
		}
	case KindWrapper:
		if s.Target == nil {
			errs = append(errs, fmt.Errorf("%s.target: %s wrapper requires a target", path, s.Type))
		}
		if len(s.Targets) > 0 {
			errs = append(errs, fmt.Errorf("%s.targets: %s wrapper takes a single target", path, s.Type))
		}
	case KindGroup:
		if len(s.Targets) == 0 {
			errs = append(errs, fmt.Errorf("%s.targets: %s group requires at least one target", path, s.Type))
		}
		if s.Target != nil {
			errs = append(errs, fmt.Errorf("%s.target: %s group takes targets, not target", path, s.Type))
		}
	}

	errs = append(errs, validateBlock(s, path)...)

	if s.Target != nil {
		errs = append(errs, validateSink(s.Target, path+".target", seen)...)
	}
	for i := range s.Targets {
		errs = append(errs, validateSink(&s.Targets[i], fmt.Sprintf("%s.targets[%d]", path, i), seen)...)
	}
	return errs
}

// validateBlock checks the option block of types that cannot run on
// defaults alone.
func validateBlock(s *SinkConfig, path string) []error {
	var errs []error
	compile := func(field, expr string) {
		if expr == "" {
			return
		}
		if _, err := condition.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", path, field, err))
		}
	}

	switch s.Type {
	case TypeFile:
		if s.File == nil {
			errs = append(errs, fmt.Errorf("%s.file: file sink requires a file block with a path", path))
		}
	case TypePublish:
		if s.Publish == nil {
			errs = append(errs, fmt.Errorf("%s.publish: publish sink requires a publish block with url and topic", path))
		}
	case TypeSpool:
		if s.Spool == nil || (s.Spool.Path == "" && !s.Spool.InMemory) {
			errs = append(errs, fmt.Errorf("%s.spool: spool sink requires a path or in_memory", path))
		}
	case TypeFilter:
		if s.Filter == nil || (s.Filter.Condition == "" && s.Filter.MinLevel == "") {
			errs = append(errs, fmt.Errorf("%s.filter: filter requires a condition or min_level", path))
			break
		}
		compile("filter.condition", s.Filter.Condition)
	case TypePostFilter:
		if s.PostFilter == nil {
			errs = append(errs, fmt.Errorf("%s.post_filter: post_filter requires a post_filter block", path))
			break
		}
		compile("post_filter.default", s.PostFilter.Default)
		for i, r := range s.PostFilter.Rules {
			compile(fmt.Sprintf("post_filter.rules[%d].exists", i), r.Exists)
			compile(fmt.Sprintf("post_filter.rules[%d].filter", i), r.Filter)
		}
	}
	return errs
}
