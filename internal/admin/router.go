// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/event"
	"github.com/tomtom215/sinkline/internal/pipeline"
)

// Runtime is the part of *pipeline.Runtime the admin API uses.
type Runtime interface {
	ID() string
	Generation() uint64
	Closed() bool
	Sequencer() *event.Sequencer
	Log(ev *event.LogEvent) error
	Flush(ctx context.Context) error
	Status() []pipeline.SinkStatus
	ReplaySpool(ctx context.Context, spoolName, targetName string) (int, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	rt  Runtime
	cfg config.AdminConfig
}

// NewHandler creates a handler. A non-positive MaxBodyBytes means 1 MiB.
func NewHandler(rt Runtime, cfg config.AdminConfig) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{rt: rt, cfg: cfg}
}

// NewRouter builds the admin API:
//
//	POST /v1/events              log one event or a JSON array of events
//	POST /v1/flush               flush the pipeline
//	POST /v1/sinks/{name}/replay replay a spool sink into a top level sink
//	GET  /healthz                runtime and sink status
//	GET  /metrics                Prometheus metrics
func NewRouter(rt Runtime, cfg config.AdminConfig) http.Handler {
	h := NewHandler(rt, cfg)
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(requestMetrics)

		r.Group(func(r chi.Router) {
			if cfg.RateLimit > 0 {
				r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
			}
			r.Post("/events", h.PostEvents)
		})
		r.Post("/flush", h.Flush)
		r.Post("/sinks/{name}/replay", h.ReplaySpool)
	})

	return r
}
