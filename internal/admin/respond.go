// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package admin

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/validation"
)

// Error codes returned in APIError.Code.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeValidation     = "VALIDATION_ERROR"
	CodeTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeNotFound       = "NOT_FOUND"
	CodeUnavailable    = "UNAVAILABLE"
	CodeTimeout        = "TIMEOUT"
	CodeDeliveryFailed = "DELIVERY_FAILED"
	CodeInternal       = "INTERNAL_ERROR"
)

// sanitizeLogValue escapes control characters so request data cannot
// forge diagnostic log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal admin response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("failed to write admin response")
	}
}

// respondError writes an APIError body. err is logged, never returned to
// the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().
			Str("code", code).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("admin request failed")
	}
	respondJSON(w, status, &validation.APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *validation.APIError) {
	respondJSON(w, status, apiErr)
}
