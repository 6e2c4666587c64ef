// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/pipeline"
)

// Input formats.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatText = "text"
)

// Dispatcher is satisfied by *pipeline.Runtime.
type Dispatcher interface {
	Log(ev *event.LogEvent) error
	Sequencer() *event.Sequencer
}

// scanned is one line or the terminal read error.
type scanned struct {
	line []byte
	err  error
}

// LineService feeds newline-delimited input into the runtime.
//
// The reader is scanned by a single goroutine started on the first Serve,
// so a restarted service resumes where the previous one stopped. End of
// input stops the service for good.
type LineService struct {
	rt      Dispatcher
	r       io.Reader
	cfg     config.IngestConfig
	logger  zerolog.Logger
	name    string
	once    sync.Once
	lines   chan scanned
	done    chan struct{}
	endOnce sync.Once
	read    atomic.Int64
	dropped atomic.Int64
}

// NewLineService creates a service reading from r.
func NewLineService(rt Dispatcher, r io.Reader, cfg config.IngestConfig) *LineService {
	if cfg.Format == "" {
		cfg.Format = FormatAuto
	}
	if cfg.Logger == "" {
		cfg.Logger = "stdin"
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 1 << 20
	}
	return &LineService{
		rt:     rt,
		r:      r,
		cfg:    cfg,
		logger: logging.Component("ingest"),
		name:   "ingest-" + cfg.Logger,
		lines:  make(chan scanned, 64),
		done:   make(chan struct{}),
	}
}

func (s *LineService) scan() {
	defer close(s.lines)

	initial := 64 * 1024
	if s.cfg.MaxLineBytes < initial {
		initial = s.cfg.MaxLineBytes
	}
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, initial), s.cfg.MaxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !s.emit(scanned{line: bytes.Clone(line)}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.emit(scanned{err: err})
	}
}

// emit hands item to Serve. It reports false once the service has stopped
// for good and nothing will read the channel again.
func (s *LineService) emit(item scanned) bool {
	select {
	case s.lines <- item:
		return true
	case <-s.done:
		return false
	}
}

// Serve implements suture.Service.
func (s *LineService) Serve(ctx context.Context) error {
	s.once.Do(func() { go s.scan() })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case item, ok := <-s.lines:
			if !ok {
				s.logger.Info().Int64("lines", s.read.Load()).Msg("ingest input closed")
				return s.finish()
			}
			if item.err != nil {
				s.logger.Error().Err(item.err).Msg("ingest input failed")
				return s.finish()
			}
			if err := s.handle(item.line); errors.Is(err, pipeline.ErrClosed) {
				return s.finish()
			}
		}
	}
}

// finish marks the input as consumed and stops the service for good.
func (s *LineService) finish() error {
	s.endOnce.Do(func() { close(s.done) })
	return suture.ErrDoNotRestart
}

// Done is closed once the service has stopped for good: at end of input,
// on a read error or when the runtime is closed.
func (s *LineService) Done() <-chan struct{} { return s.done }

// handle turns one line into an event and logs it.
func (s *LineService) handle(line []byte) error {
	ev, format := s.decode(line)
	if ev == nil {
		s.dropped.Add(1)
		metrics.IngestLines.WithLabelValues("invalid").Inc()
		return nil
	}
	s.read.Add(1)
	metrics.IngestLines.WithLabelValues(format).Inc()

	err := s.rt.Log(ev)
	if err != nil && !errors.Is(err, pipeline.ErrClosed) {
		s.logger.Warn().Err(err).Str("logger", ev.LoggerName).Msg("ingested event failed")
	}
	return err
}

func (s *LineService) decode(line []byte) (*event.LogEvent, string) {
	seq := s.rt.Sequencer()
	text := func() (*event.LogEvent, string) {
		return seq.NewMessage(event.Info, s.cfg.Logger, string(line)), FormatText
	}

	switch s.cfg.Format {
	case FormatText:
		return text()
	case FormatJSON:
		rec, err := ParseRecord(line)
		if err != nil {
			s.logger.Debug().Err(err).Msg("rejected ingest line")
			return nil, ""
		}
		return rec.Event(seq, s.cfg.Logger), FormatJSON
	default:
		if line[0] != '{' {
			return text()
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return text()
		}
		return rec.Event(seq, s.cfg.Logger), FormatJSON
	}
}

// Lines returns the number of lines turned into events.
func (s *LineService) Lines() int64 { return s.read.Load() }

// Dropped returns the number of lines rejected in json format.
func (s *LineService) Dropped() int64 { return s.dropped.Load() }

// String returns the service name for logging.
func (s *LineService) String() string {
	return s.name
}
