// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sinks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/metrics"
	"github.com/tomtom215/sinkline/internal/sink"
)

// ErrSpoolClosed is returned by Replay when the spool is not open.
var ErrSpoolClosed = errors.New("spool: not open")

const spoolPrefix = "event:"

// SpoolConfig configures a Spool sink.
type SpoolConfig struct {
	// Path is the BadgerDB directory. Required unless InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps the database in memory. Used by tests.
	InMemory bool `koanf:"in_memory"`

	// SyncWrites fsyncs every batch. Otherwise Flush syncs.
	SyncWrites bool `koanf:"sync_writes"`

	// TTL expires entries that were never replayed. Zero keeps them.
	TTL time.Duration `koanf:"ttl" validate:"gte=0"`
}

// spoolRecord is the stored form of an event. Errors are kept as text.
type spoolRecord struct {
	Time       time.Time      `json:"time"`
	Level      event.Level    `json:"level"`
	Logger     string         `json:"logger"`
	Template   string         `json:"template,omitempty"`
	Message    string         `json:"message"`
	Error      string         `json:"error,omitempty"`
	Seq        uint64         `json:"seq"`
	Properties map[string]any `json:"properties,omitempty"`
}

// spooledError restores an error that was persisted as text.
type spooledError string

func (e spooledError) Error() string { return string(e) }

// Spool persists events in BadgerDB under time-ordered keys so they can be
// replayed in arrival order after an outage.
type Spool struct {
	*sink.Base

	cfg     SpoolConfig
	entries atomic.Int64

	dbMu sync.RWMutex
	db   *badger.DB
}

// NewSpool creates a spool sink. The database is opened by Initialize.
func NewSpool(name string, cfg SpoolConfig) (*Spool, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("spool sink %q: path is required unless in_memory is set", name)
	}
	s := &Spool{cfg: cfg}
	s.Base = sink.NewBase(name, s)
	return s, nil
}

// Len returns the number of spooled events.
func (s *Spool) Len() int { return int(s.entries.Load()) }

func (s *Spool) InitializeSink(_ context.Context) error {
	opts := badger.DefaultOptions(s.cfg.Path)
	if s.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = s.cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open BadgerDB: %w", err)
	}

	n, err := countPrefix(db, []byte(spoolPrefix))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("count spooled events: %w", err)
	}

	s.dbMu.Lock()
	s.db = db
	s.dbMu.Unlock()
	s.setEntries(int64(n))

	s.Log().Info().
		Str("path", s.cfg.Path).
		Bool("in_memory", s.cfg.InMemory).
		Int("pending", n).
		Msg("spool opened")
	return nil
}

func countPrefix(db *badger.DB, prefix []byte) (int, error) {
	n := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Spool) setEntries(n int64) {
	s.entries.Store(n)
	metrics.SpoolEntries.WithLabelValues(s.Name()).Set(float64(n))
}

func (s *Spool) addEntries(delta int64) {
	n := s.entries.Add(delta)
	metrics.SpoolEntries.WithLabelValues(s.Name()).Set(float64(n))
}

func (s *Spool) WriteItem(item sink.Item) {
	s.WriteItems([]sink.Item{item})
}

// WriteItems stores the batch with one write batch. Events that cannot be
// encoded fail individually; a storage failure fails the whole batch.
func (s *Spool) WriteItems(items []sink.Item) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	stored := make([]sink.Item, 0, len(items))
	for i, it := range items {
		key, val, err := encodeSpoolEntry(it.Event)
		if err != nil {
			it.Complete(err)
			continue
		}
		e := badger.NewEntry(key, val)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		if err := wb.SetEntry(e); err != nil {
			err = fmt.Errorf("spool write: %w", err)
			sink.CompleteAll(stored, err)
			sink.CompleteAll(items[i:], err)
			return
		}
		stored = append(stored, it)
	}
	if err := wb.Flush(); err != nil {
		sink.CompleteAll(stored, fmt.Errorf("spool commit: %w", err))
		return
	}
	s.addEntries(int64(len(stored)))
	sink.CompleteAll(stored, nil)
}

func encodeSpoolEntry(ev *event.LogEvent) (key, val []byte, err error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("generate spool key: %w", err)
	}
	val, err = json.Marshal(spoolRecord{
		Time:       ev.Time,
		Level:      ev.Level,
		Logger:     ev.LoggerName,
		Template:   ev.MessageTemplate,
		Message:    ev.Message,
		Error:      ev.ErrorText(),
		Seq:        ev.Sequence,
		Properties: ev.Properties,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode event %d: %w", ev.Sequence, err)
	}
	return []byte(spoolPrefix + id.String()), val, nil
}

func decodeSpoolEntry(val []byte) (*event.LogEvent, error) {
	var rec spoolRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, err
	}
	ev := &event.LogEvent{
		Level:           rec.Level,
		LoggerName:      rec.Logger,
		MessageTemplate: rec.Template,
		Message:         rec.Message,
		Time:            rec.Time,
		Sequence:        rec.Seq,
		Properties:      rec.Properties,
	}
	if rec.Error != "" {
		ev.Err = spooledError(rec.Error)
	}
	return ev, nil
}

func (s *Spool) FlushSink(done async.Continuation) {
	if s.cfg.SyncWrites || s.cfg.InMemory {
		done.Complete(nil)
		return
	}
	if err := s.db.Sync(); err != nil {
		done.Complete(fmt.Errorf("spool sync: %w", err))
		return
	}
	done.Complete(nil)
}

func (s *Spool) CloseSink() error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

// Replay hands spooled events to fn in arrival order. Each event fn
// accepts is removed from the spool; the first error stops the replay and
// leaves that event and everything after it in place. Entries that cannot
// be decoded are logged and removed. Replay returns the number of events
// fn accepted.
func (s *Spool) Replay(ctx context.Context, fn func(ev *event.LogEvent) error) (int, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	if s.db == nil {
		return 0, ErrSpoolClosed
	}

	type pending struct {
		key []byte
		ev  *event.LogEvent
	}
	var entries []pending
	var corrupt [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(spoolPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			var ev *event.LogEvent
			err := item.Value(func(val []byte) error {
				var derr error
				ev, derr = decodeSpoolEntry(val)
				return derr
			})
			if err != nil {
				s.Log().Warn().Err(err).Str("key", string(key)).Msg("dropping undecodable spool entry")
				corrupt = append(corrupt, key)
				continue
			}
			entries = append(entries, pending{key: key, ev: ev})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate spool: %w", err)
	}

	done := corrupt
	accepted := 0
	var replayErr error
	for _, p := range entries {
		if err := ctx.Err(); err != nil {
			replayErr = err
			break
		}
		if err := fn(p.ev); err != nil {
			replayErr = fmt.Errorf("replay event %d: %w", p.ev.Sequence, err)
			break
		}
		done = append(done, p.key)
		accepted++
	}

	if err := s.deleteKeys(done); err != nil {
		return accepted, errors.Join(replayErr, err)
	}
	return accepted, replayErr
}

func (s *Spool) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete spool entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("delete spool entries: %w", err)
	}
	s.addEntries(-int64(len(keys)))
	return nil
}

// ReplayTo writes spooled events into target one at a time, waiting for
// each to complete. It is a convenience over Replay for draining a spool
// into a recovered destination.
func (s *Spool) ReplayTo(ctx context.Context, target sink.Sink) (int, error) {
	return s.Replay(ctx, func(ev *event.LogEvent) error {
		return async.Await(ctx, func(next async.Continuation) {
			target.Write(sink.NewItem(ev, next))
		})
	})
}
