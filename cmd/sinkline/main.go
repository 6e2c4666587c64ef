// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/sinkline/internal/admin"
	"github.com/tomtom215/sinkline/internal/config"
	"github.com/tomtom215/sinkline/internal/ingest"
	"github.com/tomtom215/sinkline/internal/logging"
	"github.com/tomtom215/sinkline/internal/pipeline"
	"github.com/tomtom215/sinkline/internal/supervisor"
	"github.com/tomtom215/sinkline/internal/supervisor/services"
)

func main() {
	path := config.ResolvePath("")
	cfg, err := config.Load(path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging)
	logging.Info().
		Str("config", path).
		Int("sinks", len(cfg.Sinks)).
		Int("rules", len(cfg.Rules)).
		Msg("Starting sinkline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := pipeline.New(ctx, cfg, pipeline.Options{})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build pipeline")
	}
	logging.Info().Str("runtime_id", rt.ID()).Msg("Pipeline initialized")

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// === PIPELINE LAYER ===

	reloader := services.NewReloadService(func(ctx context.Context) error {
		next, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := rt.Reconfigure(ctx, next); err != nil {
			return err
		}
		logging.SetLevelString(next.Logging.Level)
		return nil
	}, cfg.Runtime.InitTimeout+cfg.Runtime.FlushTimeout, logging.Logger())
	tree.AddPipelineService(reloader)

	if path != "" {
		if err := config.WatchConfigFile(path, reloader.Trigger); err != nil {
			logging.Warn().Err(err).Str("config", path).Msg("Config file watch unavailable, reload with SIGHUP")
		}
	}

	if cfg.Runtime.FlushInterval > 0 {
		tree.AddPipelineService(services.NewFlushService(rt, cfg.Runtime.FlushInterval, cfg.Runtime.FlushTimeout, logging.Logger()))
	}

	// === INGEST LAYER ===

	var stdinDone <-chan struct{}
	if cfg.Ingest.Stdin {
		lines := ingest.NewLineService(rt, os.Stdin, cfg.Ingest)
		tree.AddIngestService(lines)
		stdinDone = lines.Done()
		logging.Info().Str("format", cfg.Ingest.Format).Msg("Reading events from stdin")
	}

	// === API LAYER ===

	if cfg.Admin.Enabled {
		server := &http.Server{
			Handler:           admin.NewRouter(rt, cfg.Admin),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPService("admin-api", cfg.Admin.Addr, server, cfg.Admin.ShutdownTimeout, logging.Logger()))
		logging.Info().Str("addr", cfg.Admin.Addr).Msg("Admin API enabled")
	} else if stdinDone != nil {
		// With stdin as the only input the daemon ends with its input.
		go func() {
			select {
			case <-stdinDone:
				logging.Info().Msg("Input finished, shutting down")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				logging.Info().Msg("Received SIGHUP, reloading configuration")
				reloader.Trigger()
				continue
			}
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
			return
		}
	}()

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}
	signal.Stop(sigCh)

	reportUnstopped(tree)

	// The tree is down, so nothing logs into the runtime any more.
	closeCtx, cancelClose := context.WithTimeout(context.Background(), cfg.Runtime.FlushTimeout+5*time.Second)
	defer cancelClose()
	if err := rt.Close(closeCtx); err != nil {
		logging.Error().Err(err).Msg("Pipeline did not close cleanly")
	}

	logging.Info().Msg("Sinkline stopped")
}

type unstoppedReporter interface {
	UnstoppedServiceReport() ([]suture.UnstoppedService, error)
}

// reportUnstopped logs services that missed the shutdown timeout, or why
// the report could not be produced.
func reportUnstopped(tree unstoppedReporter) {
	unstopped, err := tree.UnstoppedServiceReport()
	if err != nil {
		logging.Warn().Err(err).Msg("Could not report services that failed to stop")
		return
	}
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
	}
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}
}
