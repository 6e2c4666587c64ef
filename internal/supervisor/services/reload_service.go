// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ReloadFunc reloads configuration and reconfigures the pipeline.
type ReloadFunc func(ctx context.Context) error

// ReloadService serializes configuration reloads. Triggers come from
// SIGHUP and the config file watcher; requests arriving while a reload is
// pending are coalesced into it.
type ReloadService struct {
	reload  ReloadFunc
	trigger chan struct{}
	timeout time.Duration
	logger  zerolog.Logger
	name    string
}

// NewReloadService creates a reload service. Each reload is bounded by
// timeout when it is positive.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReloadService(reload ReloadFunc, timeout time.Duration, logger zerolog.Logger) *ReloadService {
	return &ReloadService{
		reload:  reload,
		trigger: make(chan struct{}, 1),
		timeout: timeout,
		logger:  logger.With().Str("service", "reload").Logger(),
		name:    "reload-service",
	}
}

// Trigger requests a reload. It never blocks.
func (s *ReloadService) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve implements suture.Service. A failed reload keeps the running
// configuration and is only logged.
func (s *ReloadService) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.trigger:
			s.run(ctx)
		}
	}
}

func (s *ReloadService) run(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.reload(ctx); err != nil {
		s.logger.Error().Err(err).Msg("configuration reload failed, keeping current pipeline")
		return
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("configuration reloaded")
}

// String returns the service name for logging.
func (s *ReloadService) String() string {
	return s.name
}
