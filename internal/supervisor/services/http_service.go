// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Server is the part of *http.Server the service drives.
type Server interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// ListenFunc opens the listener for a service. net.Listen by default.
type ListenFunc func(network, address string) (net.Listener, error)

// HTTPService binds a TCP listener and serves an HTTP server on it under
// supervision.
//
// Binding happens inside Serve, so an address in use is reported as a
// service failure and retried with the supervisor's backoff. On
// cancellation the server is shut down with its own timeout, since the
// supervisor's context is already done by then.
//
//	server := &http.Server{Handler: admin.NewRouter(rt, cfg.Admin)}
//	tree.AddAPIService(services.NewHTTPService("admin-api", cfg.Admin.Addr, server, cfg.Admin.ShutdownTimeout, logger))
type HTTPService struct {
	name            string
	addr            string
	server          Server
	listen          ListenFunc
	shutdownTimeout time.Duration
	logger          zerolog.Logger

	mu    sync.Mutex
	bound string
}

// NewHTTPService creates a service serving server on addr. A non-positive
// shutdownTimeout means 10s and an empty name means "http-server".
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPService(name, addr string, server Server, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if name == "" {
		name = "http-server"
	}
	return &HTTPService{
		name:            name,
		addr:            addr,
		server:          server,
		listen:          net.Listen,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("service", name).Logger(),
	}
}

// WithListen replaces the listener constructor. Used by tests.
func (h *HTTPService) WithListen(listen ListenFunc) *HTTPService {
	h.listen = listen
	return h
}

// Addr returns the address the service is listening on, or "" when it is
// not serving. With a ":0" address this reports the chosen port.
func (h *HTTPService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bound
}

func (h *HTTPService) setBound(addr string) {
	h.mu.Lock()
	h.bound = addr
	h.mu.Unlock()
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPService) Serve(ctx context.Context) error {
	ln, err := h.listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen on %s: %w", h.name, h.addr, err)
	}
	h.setBound(ln.Addr().String())
	defer h.setBound("")
	h.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP service listening")

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err, ok := <-errCh:
		_ = ln.Close()
		if ok && err != nil {
			return fmt.Errorf("%s failed: %w", h.name, err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			_ = ln.Close()
			return fmt.Errorf("%s shutdown failed: %w", h.name, err)
		}
		<-errCh
		h.logger.Debug().Msg("HTTP service stopped")
		return ctx.Err()
	}
}

// String returns the service name for logging.
func (h *HTTPService) String() string {
	return h.name
}
