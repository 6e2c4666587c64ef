// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package wrapper

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/sinkline/internal/group"
	"github.com/tomtom215/sinkline/internal/sink"
	"github.com/tomtom215/sinkline/internal/sink/sinktest"
)

// A full wrapper stack over targets that complete twice and from other
// goroutines still completes every event once and delivers it once.
func TestStack_ExactlyOnceOverMisbehavingTargets(t *testing.T) {
	t.Parallel()

	primary := sinktest.New("primary")
	primary.FailNext(4, nil)
	primary.CompleteTwice(true)
	primary.CompleteAsync(true)
	backup := sinktest.New("backup")
	backup.CompleteTwice(true)
	backup.CompleteAsync(true)

	failover := group.NewFailover("failover", []sink.Sink{primary, backup}, true)
	retry, err := NewRetry("retry", failover, RetryConfig{RetryCount: 3, RetryDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("NewRetry error = %v", err)
	}
	buffering, err := NewBuffering("buffering", retry, BufferingConfig{BufferSize: 4})
	if err != nil {
		t.Fatalf("NewBuffering error = %v", err)
	}
	a, err := NewAsync("async", buffering, AsyncConfig{BatchSize: 3, TimeToSleep: time.Millisecond})
	if err != nil {
		t.Fatalf("NewAsync error = %v", err)
	}
	if err := a.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	defer a.Close()

	items, comps := sinktest.Items(10)
	a.WriteBatch(items)
	flushed := sinktest.NewCompletion()
	a.Flush(flushed)
	if err := flushed.Wait(t, wait); err != nil {
		t.Fatalf("flush err = %v, want nil", err)
	}

	for i, c := range comps {
		if err := c.Wait(t, wait); err != nil {
			t.Errorf("item %d err = %v, want nil", i, err)
		}
	}
	time.Sleep(50 * time.Millisecond)
	for i, c := range comps {
		if c.Calls() != 1 {
			t.Errorf("item %d calls = %d, want 1", i, c.Calls())
		}
	}
	if got := primary.DeliveredCount() + backup.DeliveredCount(); got != 10 {
		t.Errorf("delivered = %d, want 10", got)
	}
}
