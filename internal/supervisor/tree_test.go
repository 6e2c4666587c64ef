// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	t.Parallel()

	config := DefaultTreeConfig()
	if config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5", config.FailureThreshold)
	}
	if config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %v, want 30", config.FailureDecay)
	}
	if config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", config.FailureBackoff)
	}
	if config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", config.ShutdownTimeout)
	}
}

func TestNewTree_AppliesDefaults(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	got := tree.Config()
	if got.FailureThreshold != 5.0 || got.FailureDecay != 30.0 || got.FailureBackoff != 15*time.Second {
		t.Errorf("Config() = %+v, want suture defaults for zero fields", got)
	}
	if got.ShutdownTimeout != time.Second {
		t.Errorf("ShutdownTimeout = %v, want 1s", got.ShutdownTimeout)
	}
	if tree.Root() == nil {
		t.Error("Root() = nil")
	}
}

func TestTree_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want nil or context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestTree_LayersStartServices(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	pipelineSvc := newMockService("flusher")
	ingestSvc := newMockService("stdin")
	apiSvc := newMockService("admin")
	tree.AddPipelineService(pipelineSvc)
	tree.AddIngestService(ingestSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	for _, svc := range []*mockService{pipelineSvc, ingestSvc, apiSvc} {
		waitFor(t, func() bool { return svc.starts() >= 1 })
	}
}

func TestTree_RemoveIngestService(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := newMockService("stdin")
	token := tree.AddIngestService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitFor(t, func() bool { return svc.starts() >= 1 })
	if err := tree.RemoveIngestService(token); err != nil {
		t.Fatalf("RemoveIngestService() error = %v", err)
	}
	waitFor(t, func() bool { return svc.stopCount.Load() >= 1 })
}

func TestTree_FailingServiceIsRestartedInIsolation(t *testing.T) {
	t.Parallel()

	tree := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := newMockService("failing")
	failing.setFailCount(2)
	stable := newMockService("stable")
	tree.AddIngestService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitFor(t, func() bool { return failing.starts() >= 3 })
	waitFor(t, func() bool { return stable.starts() >= 1 })
	if got := stable.starts(); got != 1 {
		t.Errorf("stable starts = %d, want 1", got)
	}
}
