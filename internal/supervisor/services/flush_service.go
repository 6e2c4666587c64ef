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

// Flusher is satisfied by *pipeline.Runtime.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushService flushes the pipeline on a fixed interval so buffered sinks
// do not hold events indefinitely during quiet periods.
type FlushService struct {
	flusher  Flusher
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
	name     string
}

// NewFlushService creates a flush service. A non-positive interval means
// one minute. Each flush is bounded by timeout when it is positive.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFlushService(flusher Flusher, interval, timeout time.Duration, logger zerolog.Logger) *FlushService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &FlushService{
		flusher:  flusher,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("service", "flush").Logger(),
		name:     "flush-service",
	}
}

// Serve implements suture.Service. Flush failures are logged and do not
// stop the service.
func (s *FlushService) Serve(ctx context.Context) error {
	s.logger.Debug().Dur("interval", s.interval).Msg("periodic flush running")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := s.flush(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("periodic flush failed")
			}
		}
	}
}

func (s *FlushService) flush(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.flusher.Flush(ctx); err != nil {
		return err
	}
	s.logger.Trace().Dur("duration", time.Since(start)).Msg("pipeline flushed")
	return nil
}

// String returns the service name for logging.
func (s *FlushService) String() string {
	return s.name
}
