// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package ingest

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/validation"
)

// Record is the JSON form of an event accepted from outside the process,
// both on ingest lines and by the admin API.
type Record struct {
	Level      string         `json:"level" validate:"omitempty,loglevel"`
	Logger     string         `json:"logger" validate:"max=256"`
	Message    string         `json:"message" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ParseRecord decodes and validates a single JSON record.
func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the record's fields.
func (r *Record) Validate() error {
	if verr := validation.ValidateStruct(r); verr != nil {
		return verr
	}
	return nil
}

// Event builds a log event from the record. An empty level means Info and
// an empty logger means defaultLogger. The message is used verbatim.
func (r *Record) Event(seq *event.Sequencer, defaultLogger string) *event.LogEvent {
	level := event.Info
	if r.Level != "" {
		if parsed, err := event.ParseLevel(r.Level); err == nil {
			level = parsed
		}
	}
	logger := r.Logger
	if logger == "" {
		logger = defaultLogger
	}
	var err error
	if r.Error != "" {
		err = errors.New(r.Error)
	}
	return seq.NewMessageWith(level, logger, err, r.Properties, r.Message)
}
