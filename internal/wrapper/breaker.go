// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// BreakerConfig configures a Breaker wrapper.
type BreakerConfig struct {
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval resets the failure counts while closed. Zero never resets.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// Timeout is how long the breaker stays open.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker guards the target with a circuit breaker. While the breaker is
// open, writes fail immediately with gobreaker.ErrOpenState instead of
// reaching the target, which lets an enclosing fail-over group move on
// without waiting for a dead destination.
type Breaker struct {
	*sink.Base
	target sink.Sink
	cfg    BreakerConfig
	cb     *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewBreaker wraps target.
func NewBreaker(name string, target sink.Sink, cfg BreakerConfig) (*Breaker, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	d := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = d.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	b := &Breaker{target: target, cfg: cfg}
	b.Base = sink.NewBase(name, b)
	return b, nil
}

func newTwoStepBreaker(name string, cfg BreakerConfig) *gobreaker.TwoStepCircuitBreaker[struct{}] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String(), float64(to))
			log := logging.ForSink(name)
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return gobreaker.NewTwoStepCircuitBreaker[struct{}](settings)
}

// Target returns the wrapped sink.
func (b *Breaker) Target() sink.Sink { return b.target }

// BreakerState returns the breaker state as closed, half-open or open.
func (b *Breaker) BreakerState() string {
	if b.cb == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

// InitializeSink resets the breaker and initializes the target.
func (b *Breaker) InitializeSink(ctx context.Context) error {
	b.cb = newTwoStepBreaker(b.Name(), b.cfg)
	metrics.CircuitBreakerState.WithLabelValues(b.Name()).Set(0)
	return sink.InitializeAll(ctx, b.target)
}

// WriteItem forwards the item if the breaker allows it and reports the
// outcome back to the breaker.
func (b *Breaker) WriteItem(item sink.Item) {
	report, err := b.cb.Allow()
	if err != nil {
		item.Complete(err)
		return
	}
	b.target.Write(sink.Item{
		Event: item.Event,
		Done: async.Guard(async.Func(func(err error) {
			report(err)
			item.Complete(err)
		})),
	})
}

// FlushSink flushes the target.
func (b *Breaker) FlushSink(done async.Continuation) {
	b.target.Flush(done)
}

// CloseSink closes the target.
func (b *Breaker) CloseSink() error {
	return b.target.Close()
}
