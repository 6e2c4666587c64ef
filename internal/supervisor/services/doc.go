// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

/*
Package services adapts daemon components to the suture.Service interface.

  - HTTPService binds a listener, serves an *http.Server on it and shuts
    it down gracefully when the supervisor stops it.
  - FlushService flushes the pipeline on a fixed interval.
  - ReloadService runs configuration reloads one at a time, coalescing
    requests that arrive while one is pending.

Each service implements fmt.Stringer so suture logs it by name. Components
are taken as small interfaces or functions to keep this package free of
pipeline imports.
*/
package services
