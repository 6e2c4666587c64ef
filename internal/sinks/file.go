// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package sinks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/layout"
	"github.com/tomtom215/sinkline/internal/sink"
)

// FileConfig configures a File sink.
type FileConfig struct {
	Path string `koanf:"path" validate:"required"`

	// BufferSize is the write buffer in bytes.
	BufferSize int `koanf:"buffer_size" validate:"gte=0"`

	// SyncOnFlush fsyncs the file on every flush.
	SyncOnFlush bool `koanf:"sync_on_flush"`

	Layout layout.Config `koanf:"layout"`
}

// DefaultFileConfig returns a 64 KiB buffer with fsync on flush.
func DefaultFileConfig() FileConfig {
	return FileConfig{BufferSize: 64 * 1024, SyncOnFlush: true}
}

// File appends rendered events, one per line. Writes are buffered; Flush
// drains the buffer and optionally syncs the file.
type File struct {
	*sink.Base

	cfg    FileConfig
	layout layout.Layout

	f *os.File
	w *bufio.Writer
}

// NewFile creates a file sink. The file is opened by Initialize.
func NewFile(name string, cfg FileConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file sink %q: path is required", name)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultFileConfig().BufferSize
	}
	l, err := newLayout(cfg.Layout, layout.TypeJSON)
	if err != nil {
		return nil, err
	}
	fs := &File{cfg: cfg, layout: l}
	fs.Base = sink.NewBase(name, fs)
	return fs, nil
}

// Path returns the configured file path.
func (fs *File) Path() string { return fs.cfg.Path }

func (fs *File) InitializeSink(_ context.Context) error {
	if dir := filepath.Dir(fs.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(fs.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", fs.cfg.Path, err)
	}
	fs.f = f
	fs.w = bufio.NewWriterSize(f, fs.cfg.BufferSize)
	fs.Log().Debug().Str("path", fs.cfg.Path).Msg("file sink opened")
	return nil
}

func (fs *File) WriteItem(item sink.Item) {
	fs.WriteItems([]sink.Item{item})
}

// WriteItems appends the batch to the write buffer. An event that cannot
// be rendered fails on its own; a buffer error fails the rest of the batch.
func (fs *File) WriteItems(items []sink.Item) {
	for i, it := range items {
		line, err := fs.layout.Render(it.Event)
		if err != nil {
			it.Complete(err)
			continue
		}
		if _, err := fs.w.Write(line); err == nil {
			err = fs.w.WriteByte('\n')
		}
		if err != nil {
			err = fmt.Errorf("write %s: %w", fs.cfg.Path, err)
			sink.CompleteAll(items[i:], err)
			return
		}
		it.Complete(nil)
	}
}

func (fs *File) FlushSink(done async.Continuation) {
	done.Complete(fs.sync())
}

func (fs *File) sync() error {
	if err := fs.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", fs.cfg.Path, err)
	}
	if fs.cfg.SyncOnFlush {
		if err := fs.f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", fs.cfg.Path, err)
		}
	}
	return nil
}

func (fs *File) CloseSink() error {
	err := fs.sync()
	if cerr := fs.f.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close %s: %w", fs.cfg.Path, cerr))
	}
	fs.f, fs.w = nil, nil
	return err
}
