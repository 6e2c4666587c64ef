// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package config

import (
	"time"

	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/sinks"
	"github.com/tomtom215/sinkline/internal/wrapper"
)

// Sink types. Wrappers decorate exactly one target, groups forward to one
// or more targets, leaves have none.
const (
	TypeAsync      = "async"
	TypeBuffering  = "buffering"
	TypeRetry      = "retry"
	TypeFilter     = "filter"
	TypePostFilter = "post_filter"
	TypeLimiting   = "limiting"
	TypeBreaker    = "breaker"

	TypeFailover   = "failover"
	TypeRoundRobin = "roundrobin"
	TypeRandom     = "random"
	TypeSplit      = "split"

	TypeConsole = "console"
	TypeFile    = "file"
	TypeMemory  = "memory"
	TypeNull    = "null"
	TypePublish = "publish"
	TypeSpool   = "spool"
)

// Kind classifies a sink type by the number of children it takes.
type Kind int

const (
	KindUnknown Kind = iota
	KindLeaf
	KindWrapper
	KindGroup
)

// KindOf returns the kind of a sink type.
func KindOf(typ string) Kind {
	switch typ {
	case TypeAsync, TypeBuffering, TypeRetry, TypeFilter, TypePostFilter, TypeLimiting, TypeBreaker:
		return KindWrapper
	case TypeFailover, TypeRoundRobin, TypeRandom, TypeSplit:
		return KindGroup
	case TypeConsole, TypeFile, TypeMemory, TypeNull, TypePublish, TypeSpool:
		return KindLeaf
	default:
		return KindUnknown
	}
}

// Config is the complete sinkline configuration.
type Config struct {
	Logging logging.Config `koanf:"logging"`
	Runtime RuntimeConfig  `koanf:"runtime"`
	Admin   AdminConfig    `koanf:"admin"`
	Ingest  IngestConfig   `koanf:"ingest"`
	Sinks   []SinkConfig   `koanf:"sinks" validate:"min=1,dive"`
	Rules   []RuleConfig   `koanf:"rules" validate:"dive"`
}

// RuntimeConfig holds pipeline-wide switches.
type RuntimeConfig struct {
	// ThrowOnFailure makes Log return synchronous delivery failures.
	ThrowOnFailure bool `koanf:"throw_on_failure"`

	// FlushTimeout bounds Flush during shutdown and reconfiguration.
	FlushTimeout time.Duration `koanf:"flush_timeout" validate:"gte=0"`

	// InitTimeout bounds sink initialization.
	InitTimeout time.Duration `koanf:"init_timeout" validate:"gte=0"`

	// FlushInterval flushes the pipeline periodically. Zero disables.
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gte=0"`
}

// AdminConfig configures the admin HTTP API.
type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"required_if=Enabled true"`

	// RateLimit caps ingest requests per client per minute. Zero disables.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`

	// MaxBodyBytes limits the size of posted event batches.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gte=0"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// IngestConfig configures the line ingest service.
type IngestConfig struct {
	// Stdin reads events from standard input.
	Stdin bool `koanf:"stdin"`

	// Logger is the logger name for plain text lines.
	Logger string `koanf:"logger"`

	// Format is auto, json or text.
	Format string `koanf:"format" validate:"omitempty,oneof=auto json text"`

	// MaxLineBytes bounds a single input line.
	MaxLineBytes int `koanf:"max_line_bytes" validate:"gte=0"`
}

// RuleConfig routes events from matching loggers to root sinks.
type RuleConfig struct {
	// Logger is a glob over logger names, e.g. "db.*" or "{api,web}.**".
	Logger string `koanf:"logger" validate:"required"`

	// MinLevel is the lowest level the rule accepts.
	MinLevel event.Level `koanf:"min_level"`

	// Sinks are names of top level sinks.
	Sinks []string `koanf:"sinks" validate:"min=1,dive,required"`

	// Final stops evaluation of later rules for matching events.
	Final bool `koanf:"final"`
}

// SinkConfig describes one node of the sink tree. Exactly the option block
// matching Type is used; the others are ignored.
type SinkConfig struct {
	Name string `koanf:"name" validate:"required,sinkname"`
	Type string `koanf:"type" validate:"required"`

	Async      *wrapper.AsyncConfig     `koanf:"async"`
	Buffering  *wrapper.BufferingConfig `koanf:"buffering"`
	Retry      *wrapper.RetryConfig     `koanf:"retry"`
	Filter     *FilterConfig            `koanf:"filter"`
	PostFilter *PostFilterConfig        `koanf:"post_filter"`
	Limiting   *wrapper.LimitingConfig  `koanf:"limiting"`
	Breaker    *wrapper.BreakerConfig   `koanf:"breaker"`
	Failover   *FailoverConfig          `koanf:"failover"`

	Console *sinks.ConsoleConfig `koanf:"console"`
	File    *sinks.FileConfig    `koanf:"file"`
	Memory  *sinks.MemoryConfig  `koanf:"memory"`
	Publish *sinks.PublishConfig `koanf:"publish"`
	Spool   *sinks.SpoolConfig   `koanf:"spool"`

	// Target is the child of a wrapper.
	Target *SinkConfig `koanf:"target"`

	// Targets are the children of a group.
	Targets []SinkConfig `koanf:"targets" validate:"dive"`
}

// FilterConfig configures a pre-filter. When both are set an event must
// pass MinLevel and Condition.
type FilterConfig struct {
	// Condition is a CEL expression over the event.
	Condition string `koanf:"condition"`

	// MinLevel admits events at or above this level.
	MinLevel string `koanf:"min_level" validate:"omitempty,loglevel"`
}

// PostFilterConfig configures a batch post-filter.
type PostFilterConfig struct {
	// Default applies when no rule triggers. Empty passes everything.
	Default string `koanf:"default"`

	Rules []PostFilterRuleConfig `koanf:"rules" validate:"dive"`
}

// PostFilterRuleConfig selects Filter when Exists holds for any event of
// the batch.
type PostFilterRuleConfig struct {
	Exists string `koanf:"exists" validate:"required"`
	Filter string `koanf:"filter"`
}

// FailoverConfig configures a fail-over group.
type FailoverConfig struct {
	// ReturnToFirstOnSuccess restarts every write at the first target.
	ReturnToFirstOnSuccess bool `koanf:"return_to_first_on_success"`
}

// DefaultAdminAddr is the loopback listen address of the admin API.
const DefaultAdminAddr = "127.0.0.1:9366"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: logging.Config{
			Level:     "info",
			Format:    "json",
			Timestamp: true,
		},
		Runtime: RuntimeConfig{
			ThrowOnFailure: false,
			FlushTimeout:   15 * time.Second,
			InitTimeout:    30 * time.Second,
		},
		Admin: AdminConfig{
			Enabled:         false,
			Addr:            DefaultAdminAddr,
			RateLimit:       0,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Ingest: IngestConfig{
			Stdin:        false,
			Logger:       "stdin",
			Format:       "auto",
			MaxLineBytes: 1 << 20,
		},
	}
}

// defaultPipeline is used when the configuration names no sinks: info and
// above from every logger to a console sink.
func defaultPipeline() ([]SinkConfig, []RuleConfig) {
	sinkCfgs := []SinkConfig{
		{Name: "console", Type: TypeConsole},
	}
	rules := []RuleConfig{
		{Logger: "**", MinLevel: event.Info, Sinks: []string{"console"}},
	}
	return sinkCfgs, rules
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaultConfig()
	cfg.Sinks, cfg.Rules = defaultPipeline()
	return cfg
}
