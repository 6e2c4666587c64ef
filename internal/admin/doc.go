// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

/*
Package admin serves the daemon's HTTP API with chi.

Events are posted as ingest.Record objects, one per request or as a JSON
array:

	curl -X POST 127.0.0.1:9366/v1/events \
	    -d '[{"level":"error","logger":"billing","message":"card declined"}]'

Errors use validation.APIError bodies with a stable code. Request counts and
latency are exported under sinkline_admin_* by route pattern. When
admin.rate_limit is set, /v1/events is limited per client IP with httprate.

The API has no authentication and is meant to listen on loopback or a
trusted network.
*/
package admin
