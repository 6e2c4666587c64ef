// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

/*
Command sinkline runs a log dispatch pipeline as a daemon.

Events arrive on standard input (ingest.stdin) or through the admin API
(admin.enabled) and are routed by logger name to a tree of sinks built from
the configuration file.

# Process Layout

	Root ("sinkline")
	├── pipeline-layer
	│   ├── reload-service
	│   └── flush-service (runtime.flush_interval > 0)
	├── ingest-layer
	│   └── ingest-stdin (ingest.stdin)
	└── api-layer
	    └── admin-api (admin.enabled)

The pipeline runtime is built before the tree starts and closed after it
stops, flushing every sink within runtime.flush_timeout.

# Configuration

The YAML file is taken from SINKLINE_CONFIG or the first of
config.DefaultConfigPaths that exists. Scalar settings can be overridden
from the environment:

	SINKLINE_LOG_LEVEL=debug
	SINKLINE_ADMIN_ENABLED=true
	SINKLINE_ADMIN_ADDR=127.0.0.1:9366
	SINKLINE_INGEST_STDIN=true
	SINKLINE_FLUSH_INTERVAL=5s

# Signals

	SIGHUP           reload the configuration file and rebuild the sink tree
	SIGINT, SIGTERM  stop the services, flush and close the pipeline

A failed reload keeps the running pipeline. The file is also watched and
reloaded on change. Admin and ingest settings take effect on restart only.

With stdin ingest and no admin API the daemon exits at end of input:

	myapp 2>&1 | SINKLINE_INGEST_STDIN=true sinkline
*/
package main
