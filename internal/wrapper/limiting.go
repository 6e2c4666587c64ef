// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// LimitingConfig configures a Limiting wrapper.
type LimitingConfig struct {
	// MessageLimit is the number of events allowed per Interval.
	MessageLimit int `koanf:"message_limit" validate:"gte=0"`

	// Interval is the window MessageLimit applies to.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

// DefaultLimitingConfig returns the default limiting configuration.
func DefaultLimitingConfig() LimitingConfig {
	return LimitingConfig{
		MessageLimit: 1000,
		Interval:     time.Hour,
	}
}

// Limiting caps the event rate reaching the target with a token bucket of
// MessageLimit tokens refilled over Interval. Events over the limit
// complete with nil and are not forwarded.
type Limiting struct {
	*sink.Base
	target  sink.Sink
	cfg     LimitingConfig
	limiter *rate.Limiter
	dropped int64
}

// NewLimiting wraps target.
func NewLimiting(name string, target sink.Sink, cfg LimitingConfig) (*Limiting, error) {
	if err := requireTarget(target); err != nil {
		return nil, err
	}
	d := DefaultLimitingConfig()
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = d.MessageLimit
	}
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	l := &Limiting{target: target, cfg: cfg}
	l.Base = sink.NewBase(name, l)
	return l, nil
}

// Target returns the wrapped sink.
func (l *Limiting) Target() sink.Sink { return l.target }

// InitializeSink resets the bucket and initializes the target.
func (l *Limiting) InitializeSink(ctx context.Context) error {
	l.limiter = rate.NewLimiter(refillRate(l.cfg), l.cfg.MessageLimit)
	l.dropped = 0
	return sink.InitializeAll(ctx, l.target)
}

// refillRate spreads MessageLimit tokens over Interval. It divides in
// floating point because an integer division truncates to zero for short
// intervals and rate.Every(0) means no limit at all.
func refillRate(cfg LimitingConfig) rate.Limit {
	return rate.Limit(float64(cfg.MessageLimit) / cfg.Interval.Seconds())
}

// WriteItem forwards the item if a token is available.
func (l *Limiting) WriteItem(item sink.Item) {
	if l.limiter.Allow() {
		l.target.Write(item)
		return
	}
	l.drop(item)
}

// WriteItems forwards the admitted items as one batch.
func (l *Limiting) WriteItems(items []sink.Item) {
	kept := make([]sink.Item, 0, len(items))
	for _, it := range items {
		if l.limiter.Allow() {
			kept = append(kept, it)
			continue
		}
		l.drop(it)
	}
	if len(kept) > 0 {
		l.target.WriteBatch(kept)
	}
}

func (l *Limiting) drop(item sink.Item) {
	l.dropped++
	metrics.LimitedEvents.WithLabelValues(l.Name()).Inc()
	if l.dropped == 1 || l.dropped%int64(l.cfg.MessageLimit) == 0 {
		l.Log().Warn().
			Int64("dropped", l.dropped).
			Int("limit", l.cfg.MessageLimit).
			Dur("interval", l.cfg.Interval).
			Msg("event rate limit reached, dropping events")
	}
	item.Complete(nil)
}

// FlushSink flushes the target.
func (l *Limiting) FlushSink(done async.Continuation) {
	l.target.Flush(done)
}

// CloseSink closes the target.
func (l *Limiting) CloseSink() error {
	return l.target.Close()
}
