// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch Metrics
	EventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_events_logged_total",
			Help: "Total number of events accepted by the runtime",
		},
		[]string{"level"},
	)

	EventsUnrouted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sinkline_events_unrouted_total",
			Help: "Events that matched no routing rule",
		},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_delivery_failures_total",
			Help: "Events whose continuation completed with an error at the runtime boundary",
		},
		[]string{"logger"},
	)

	ContinuationDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sinkline_continuation_duplicates_total",
			Help: "Continuation invocations dropped because the continuation had already fired",
		},
	)

	// Sink Metrics
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_sink_writes_total",
			Help: "Events completed by a sink, by outcome",
		},
		[]string{"sink", "result"}, // result: "success", "failure"
	)

	SinkInitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_sink_init_failures_total",
			Help: "Failed sink initialization attempts",
		},
		[]string{"sink"},
	)

	// Async Wrapper Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sinkline_async_queue_depth",
			Help: "Events waiting in an async wrapper queue",
		},
		[]string{"sink"},
	)

	QueueOverflow = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_async_queue_overflow_total",
			Help: "Enqueues that hit the queue capacity",
		},
		[]string{"sink", "policy"},
	)

	AsyncBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sinkline_async_batch_size",
			Help:    "Number of events forwarded per background batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"sink"},
	)

	AsyncLoopFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_async_loop_faults_total",
			Help: "Faults recovered inside an async wrapper background loop",
		},
		[]string{"sink"},
	)

	// Buffering, Retry and Group Metrics
	BufferFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_buffer_flushes_total",
			Help: "Buffer flushes by trigger",
		},
		[]string{"sink", "reason"}, // reason: "full", "timer", "flush", "close"
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_retry_attempts_total",
			Help: "Write attempts made after a failure",
		},
		[]string{"sink"},
	)

	FailoverSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_failover_switches_total",
			Help: "Times a fail-over group advanced to its next child",
		},
		[]string{"sink"},
	)

	FilteredEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_filtered_events_total",
			Help: "Events dropped by a filter",
		},
		[]string{"sink", "stage"}, // stage: "pre", "post"
	)

	LimitedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_limited_events_total",
			Help: "Events dropped by a rate limiting wrapper",
		},
		[]string{"sink"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sinkline_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Spool Metrics
	SpoolEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sinkline_spool_entries",
			Help: "Events persisted in a spool sink and not yet replayed",
		},
		[]string{"sink"},
	)

	// Admin API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_admin_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sinkline_admin_request_duration_seconds",
			Help:    "Admin API request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	IngestLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sinkline_ingest_lines_total",
			Help: "Lines read by the ingest service",
		},
		[]string{"format"}, // format: "json", "text", "invalid"
	)
)

// RecordWrite records the outcome of one event at a sink.
func RecordWrite(sink string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SinkWrites.WithLabelValues(sink, result).Inc()
}

// RecordAPIRequest records an admin API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBreakerTransition updates breaker state metrics. States use the
// numbering of CircuitBreakerState.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
