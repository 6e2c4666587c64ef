// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

/*
Package supervisor runs the long-lived services of the sinkline daemon under
a suture v4 supervisor tree.

# Overview

Services are grouped into layers so a failure in one does not restart the
others:

	Root ("sinkline")
	├── pipeline-layer
	│   ├── FlushService (if runtime.flush_interval > 0)
	│   └── ReloadService
	├── ingest-layer
	│   └── ingest.LineService (if ingest.stdin)
	└── api-layer
	    └── HTTPService (if admin.enabled)

The dispatch runtime itself is not a service. It is created before the tree
starts and closed after the tree stops, so no event is accepted by a
restarted ingest service while the pipeline is shutting down.

# Restart Policy

Crashed services restart with suture's exponential backoff. TreeConfig
tunes the failure threshold, decay and backoff. ShutdownTimeout bounds how
long a service may take to stop; stragglers are listed by
UnstoppedServiceReport.

# Logging

Supervisor events go through sutureslog to the slog.Logger passed to
NewTree. The daemon passes logging.NewSlogLogger so they land on the
diagnostic channel.

# Usage

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(reloader)
	tree.AddIngestService(ingest.NewLineService(rt, os.Stdin, cfg.Ingest))
	tree.AddAPIService(services.NewHTTPService("admin-api", cfg.Admin.Addr, server, cfg.Admin.ShutdownTimeout, logger))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
*/
package supervisor
