// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sinkline/internal/async"
	"github.com/tomtom215/sinkline/internal/ingest"
	"github.com/tomtom215/sinkline/internal/pipeline"
	"github.com/tomtom215/sinkline/internal/validation"
)

// DefaultLogger names events posted without a logger.
const DefaultLogger = "admin"

// EventsResponse is the body of a successful POST /v1/events.
type EventsResponse struct {
	Accepted int `json:"accepted"`
}

// ReplayRequest is the body of POST /v1/sinks/{name}/replay.
type ReplayRequest struct {
	Target string `json:"target" validate:"required,sinkname"`
}

// ReplayResponse reports how many spooled events were delivered.
type ReplayResponse struct {
	Spool    string `json:"spool"`
	Target   string `json:"target"`
	Replayed int    `json:"replayed"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status     string                `json:"status"`
	RuntimeID  string                `json:"runtime_id"`
	Generation uint64                `json:"generation"`
	Sinks      []pipeline.SinkStatus `json:"sinks,omitempty"`
}

// readBody reads the request body up to the configured limit. It writes
// the error response itself and returns ok=false on failure.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
			return nil, false
		}
		respondError(w, http.StatusBadRequest, CodeBadRequest, "failed to read request body", err)
		return nil, false
	}
	return data, true
}

// decodeRecords accepts a single record object or an array of them.
func decodeRecords(data []byte) ([]ingest.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	if data[0] == '[' {
		var records []ingest.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, errors.New("no events in request")
		}
		return records, nil
	}
	var rec ingest.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return []ingest.Record{rec}, nil
}

// PostEvents logs the posted events. Every record is validated before any
// is logged, so a rejected request logs nothing.
func (h *Handler) PostEvents(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	records, err := decodeRecords(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid event payload: "+err.Error(), nil)
		return
	}
	for i := range records {
		if verr := validation.ValidateStruct(&records[i]); verr != nil {
			apiErr := verr.ToAPIError()
			if apiErr.Details == nil {
				apiErr.Details = map[string]interface{}{}
			}
			apiErr.Details["index"] = i
			respondAPIError(w, http.StatusBadRequest, apiErr)
			return
		}
	}

	seq := h.rt.Sequencer()
	accepted := 0
	for i := range records {
		err := h.rt.Log(records[i].Event(seq, DefaultLogger))
		switch {
		case errors.Is(err, pipeline.ErrClosed):
			respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "runtime is closed", nil)
			return
		case err != nil:
			respondJSON(w, http.StatusBadGateway, &validation.APIError{
				Code:    CodeDeliveryFailed,
				Message: "event delivery failed: " + err.Error(),
				Details: map[string]interface{}{"index": i, "accepted": accepted},
			})
			return
		}
		accepted++
	}
	respondJSON(w, http.StatusAccepted, EventsResponse{Accepted: accepted})
}

// Flush flushes every sink, bounded by the runtime's flush timeout and the
// request context.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	err := h.rt.Flush(r.Context())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
	case errors.Is(err, pipeline.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "runtime is closed", nil)
	case errors.Is(err, async.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, CodeTimeout, "flush timed out", err)
	default:
		respondError(w, http.StatusInternalServerError, CodeInternal, "flush failed: "+err.Error(), err)
	}
}

// ReplaySpool replays the spool sink named in the path into the target
// top level sink named in the body.
func (h *Handler) ReplaySpool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	var req ReplayRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid replay request", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondAPIError(w, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	n, err := h.rt.ReplaySpool(r.Context(), name, req.Target)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, ReplayResponse{Spool: name, Target: req.Target, Replayed: n})
	case errors.Is(err, pipeline.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, pipeline.ErrNotSpool):
		respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
	case errors.Is(err, pipeline.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "runtime is closed", nil)
	default:
		respondJSON(w, http.StatusInternalServerError, &validation.APIError{
			Code:    CodeInternal,
			Message: "replay failed: " + err.Error(),
			Details: map[string]interface{}{"replayed": n},
		})
	}
}

// Health reports the runtime and its sinks. It answers 503 once the
// runtime is closed or when a sink failed to initialize.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		RuntimeID:  h.rt.ID(),
		Generation: h.rt.Generation(),
	}
	if h.rt.Closed() {
		resp.Status = "closed"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Sinks = h.rt.Status()
	for _, s := range resp.Sinks {
		if s.Error != "" {
			resp.Status = "degraded"
		}
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
