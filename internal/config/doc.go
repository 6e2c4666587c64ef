// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

/*
Package config loads and validates the sinkline configuration.

Configuration is layered with Koanf v2, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: an explicit path, SINKLINE_CONFIG, or the first of
    DefaultConfigPaths that exists
 3. SINKLINE_* environment variables for scalar settings

The sink tree is a list of nodes. Each node names a type and carries the
option block for that type. Wrappers take a single target, groups take a
list of targets:

	sinks:
	  - name: main
	    type: async
	    async:
	      queue_limit: 10000
	      overflow: discard
	    target:
	      name: fallback
	      type: failover
	      targets:
	        - name: bus
	          type: publish
	          publish:
	            url: nats://127.0.0.1:4222
	            topic: logs
	        - name: disk
	          type: file
	          file:
	            path: /var/log/sinkline/events.jsonl
	rules:
	  - logger: "**"
	    min_level: info
	    sinks: [main]

A configuration without sinks and rules routes info and above from every
logger to a console sink.

Validation runs the struct tags through the shared validator and then
checks the tree: sink names are unique, every node has the children its
type needs, CEL conditions compile and rules reference top level sinks.
*/
package config
