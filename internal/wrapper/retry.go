// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"time"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// RetryConfig configures a Retry wrapper.
type RetryConfig struct {
	// RetryCount is the total number of attempts per event.
	RetryCount int `koanf:"retry_count" validate:"gte=0"`

	// RetryDelay is the wait before each attempt after the first.
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gte=0"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		RetryCount: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Retry writes each event to the target up to RetryCount times, waiting
// RetryDelay between attempts. Events are retried independently; a batch
// is written one event at a time so a failing event does not hold back the
// others.
//
// A failure may be reported on a goroutine owned by the target, such as
// the loop of an async wrapper. Later attempts therefore run on a timer,
// never on the goroutine that delivered the failure.
type Retry struct {
	*sink.Base
	target sink.Sink
	cfg    RetryConfig
	after  func(d time.Duration, f func())
}

// afterDelay runs f on its own goroutine once d has passed.
func afterDelay(d time.Duration, f func()) {
	if d <= 0 {
		go f()
		return
	}
	time.AfterFunc(d, f)
}

// NewRetry wraps target.
func NewRetry(name string, target sink.Sink, cfg RetryConfig) (*Retry, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = DefaultRetryConfig().RetryCount
	}
	r := &Retry{target: target, cfg: cfg, after: afterDelay}
	r.Base = sink.NewBase(name, r)
	return r, nil
}

// Target returns the wrapped sink.
func (r *Retry) Target() sink.Sink { return r.target }

// InitializeSink initializes the target.
func (r *Retry) InitializeSink(ctx context.Context) error {
	return sink.InitializeAll(ctx, r.target)
}

// WriteItem writes with retries. The item's continuation receives nil on
// the first success or the last error once attempts run out.
func (r *Retry) WriteItem(item sink.Item) {
	attempt := 0
	async.Repeat(r.cfg.RetryCount, item.Done, func(next async.Continuation) {
		attempt++
		n := attempt
		write := func() {
			r.target.Write(sink.Item{
				Event: item.Event,
				Done: async.Func(func(err error) {
					if err != nil {
						r.Log().Warn().
							Err(err).
							Str("target", r.target.Name()).
							Int("attempt", n).
							Int("max_attempts", r.cfg.RetryCount).
							Msg("write failed")
					}
					next.Complete(err)
				}),
			})
		}
		if n == 1 {
			write()
			return
		}
		metrics.RetryAttempts.WithLabelValues(r.Name()).Inc()
		r.after(r.cfg.RetryDelay, func() {
			if err := async.Safe(write); err != nil {
				next.Complete(err)
			}
		})
	})
}

// FlushSink flushes the target.
func (r *Retry) FlushSink(done async.Continuation) {
	r.target.Flush(done)
}

// CloseSink closes the target.
func (r *Retry) CloseSink() error {
	return r.target.Close()
}
