// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sinks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/layout"
	"github.com/tomtom215/sinkline/internal/sink"
)

// PublishConfig configures a Publish sink.
type PublishConfig struct {
	// URL of the NATS server, e.g. nats://127.0.0.1:4222.
	URL string `koanf:"url" validate:"required"`

	// Topic is the subject events are published on.
	Topic string `koanf:"topic" validate:"required"`

	// JetStream publishes through JetStream instead of core NATS.
	JetStream bool `koanf:"jetstream"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`

	Layout layout.Config `koanf:"layout"`
}

// DefaultPublishConfig returns reconnect defaults for core NATS.
func DefaultPublishConfig() PublishConfig {
	return PublishConfig{
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Connector opens the publisher when the sink is initialized.
type Connector func() (message.Publisher, error)

// Publish sends each event as one Watermill message. The payload is the
// rendered event; level, logger and sequence are copied into metadata.
type Publish struct {
	*sink.Base

	topic   string
	layout  layout.Layout
	connect Connector
	pub     message.Publisher
}

// NewPublish creates a publish sink that opens its publisher with connect.
// The sink owns the publisher and closes it on Close.
func NewPublish(name, topic string, l layout.Layout, connect Connector) (*Publish, error) {
	if topic == "" {
		return nil, fmt.Errorf("publish sink %q: topic is required", name)
	}
	if connect == nil {
		return nil, fmt.Errorf("publish sink %q: no publisher", name)
	}
	if l == nil {
		l = layout.NewJSON("")
	}
	p := &Publish{topic: topic, layout: l, connect: connect}
	p.Base = sink.NewBase(name, p)
	return p, nil
}

// NewNATSPublish creates a publish sink backed by a Watermill NATS
// publisher.
func NewNATSPublish(name string, cfg PublishConfig) (*Publish, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("publish sink %q: url is required", name)
	}
	l, err := newLayout(cfg.Layout, layout.TypeJSON)
	if err != nil {
		return nil, err
	}
	var p *Publish
	connect := func() (message.Publisher, error) {
		return newNATSPublisher(cfg, NewWatermillLogger(*p.Log()))
	}
	p, err = NewPublish(name, cfg.Topic, l, connect)
	return p, err
}

func newNATSPublisher(cfg PublishConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: cfg.JetStream,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

func (p *Publish) InitializeSink(_ context.Context) error {
	pub, err := p.connect()
	if err != nil {
		return err
	}
	p.pub = pub
	return nil
}

func (p *Publish) WriteItem(item sink.Item) {
	p.WriteItems([]sink.Item{item})
}

// WriteItems publishes the batch in one call. Watermill reports a single
// error for the call, so every message of a failed batch fails.
func (p *Publish) WriteItems(items []sink.Item) {
	msgs := make([]*message.Message, 0, len(items))
	sent := make([]sink.Item, 0, len(items))
	for _, it := range items {
		payload, err := p.layout.Render(it.Event)
		if err != nil {
			it.Complete(err)
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("level", it.Event.Level.String())
		msg.Metadata.Set("logger", it.Event.LoggerName)
		msg.Metadata.Set("seq", strconv.FormatUint(it.Event.Sequence, 10))
		msgs = append(msgs, msg)
		sent = append(sent, it)
	}
	if len(msgs) == 0 {
		return
	}
	if err := p.pub.Publish(p.topic, msgs...); err != nil {
		sink.CompleteAll(sent, fmt.Errorf("publish to %s: %w", p.topic, err))
		return
	}
	sink.CompleteAll(sent, nil)
}

func (p *Publish) FlushSink(done async.Continuation) { done.Complete(nil) }

func (p *Publish) CloseSink() error {
	err := p.pub.Close()
	p.pub = nil
	return err
}

// WatermillLogger adapts a zerolog logger to watermill.LoggerAdapter.
type WatermillLogger struct {
	log zerolog.Logger
}

// NewWatermillLogger wraps l.
func NewWatermillLogger(l zerolog.Logger) *WatermillLogger {
	return &WatermillLogger{log: l.With().Str("component", "watermill").Logger()}
}

func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Info().Fields(map[string]any(fields)).Msg(msg)
}

func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{log: w.log.With().Fields(map[string]any(fields)).Logger()}
}
