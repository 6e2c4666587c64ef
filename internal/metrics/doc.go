// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

/*
Package metrics defines the Prometheus collectors of the dispatch runtime.

Collectors are registered with the default registry through promauto and
exposed by the admin server at /metrics:

	curl http://localhost:9464/metrics

# Available Metrics

Dispatch:
  - sinkline_events_logged_total{level}
  - sinkline_events_unrouted_total
  - sinkline_delivery_failures_total{logger}
  - sinkline_continuation_duplicates_total

Sinks and wrappers (labelled by sink name):
  - sinkline_sink_writes_total{sink,result}
  - sinkline_sink_init_failures_total{sink}
  - sinkline_async_queue_depth{sink}
  - sinkline_async_queue_overflow_total{sink,policy}
  - sinkline_async_batch_size{sink}
  - sinkline_async_loop_faults_total{sink}
  - sinkline_buffer_flushes_total{sink,reason}
  - sinkline_retry_attempts_total{sink}
  - sinkline_failover_switches_total{sink}
  - sinkline_filtered_events_total{sink,stage}
  - sinkline_limited_events_total{sink}
  - sinkline_circuit_breaker_state{name}
  - sinkline_spool_entries{sink}

Admin and ingest:
  - sinkline_admin_requests_total{method,endpoint,status}
  - sinkline_admin_request_duration_seconds{method,endpoint}
  - sinkline_ingest_lines_total{format}

Sink names come from configuration, so label cardinality is bounded by the
size of the configured sink graph.
*/
package metrics
