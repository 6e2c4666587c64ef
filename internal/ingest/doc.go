// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

// Package ingest turns external input into log events.
//
// LineService reads newline-delimited input, typically standard input of
// the daemon. In json format every line must be a Record:
//
//	{"level":"warn","logger":"db.pool","message":"slow query","properties":{"ms":812}}
//
// In text format every line becomes an Info event of the configured
// logger. The auto format tries json for lines starting with '{' and falls
// back to text.
package ingest
