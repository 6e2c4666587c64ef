// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for a service to stop.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the supervisor hierarchy of the sinkline daemon.
//
// Services are grouped into three layers that restart independently:
//   - pipeline: periodic flush and configuration reload
//   - ingest: line readers feeding the runtime
//   - api: the admin HTTP server
//
// A crashing stdin reader never takes the admin API down with it.
type Tree struct {
	root     *suture.Supervisor
	pipeline *suture.Supervisor
	ingest   *suture.Supervisor
	api      *suture.Supervisor
	config   TreeConfig
}

// NewTree creates a supervisor tree logging through logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Children inherit the event hook when added to the root.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	t := &Tree{
		root:     suture.New("sinkline", rootSpec),
		pipeline: suture.New("pipeline-layer", childSpec),
		ingest:   suture.New("ingest-layer", childSpec),
		api:      suture.New("api-layer", childSpec),
		config:   config,
	}
	t.root.Add(t.pipeline)
	t.root.Add(t.ingest)
	t.root.Add(t.api)
	return t
}

// Config returns the effective configuration with defaults applied.
func (t *Tree) Config() TreeConfig {
	return t.config
}

// Root returns the root supervisor.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// AddPipelineService adds a service to the pipeline layer.
func (t *Tree) AddPipelineService(svc suture.Service) suture.ServiceToken {
	return t.pipeline.Add(svc)
}

// AddIngestService adds a service to the ingest layer.
func (t *Tree) AddIngestService(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// RemoveIngestService stops and removes an ingest service.
func (t *Tree) RemoveIngestService(token suture.ServiceToken) error {
	return t.ingest.Remove(token)
}

// AddAPIService adds a service to the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The returned channel
// receives the result of Serve.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
