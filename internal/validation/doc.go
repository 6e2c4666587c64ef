// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package validation provides struct validation using go-playground/validator v10.
//
// The package wraps the validator library with a thread-safe singleton
// instance, the custom rules sinkline needs and readable error messages.
// The configuration loader validates the whole configuration tree with it
// and the admin API validates request bodies with it.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Field paths built from koanf and json keys, e.g. "sinks[2].file.path"
//   - Custom tags: loglevel (a name accepted by event.ParseLevel) and
//     sinkname (characters safe in metric labels)
//   - APIError conversion for admin API responses
//
// # Quick Start
//
//	type eventRequest struct {
//	    Level   string `json:"level" validate:"omitempty,loglevel"`
//	    Message string `json:"message" validate:"required"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr)
//	    return
//	}
//
// # Thread Safety
//
// GetValidator and ValidateStruct are safe for concurrent use. The
// validator caches struct metadata, so the singleton avoids repeated
// reflection across requests and configuration reloads.
package validation
