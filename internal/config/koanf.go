// Sinkline - Structured Logging Dispatch Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sinkline

package config

import (
	"fmt"
	"maps"
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"sinkline.yaml",
	"sinkline.yml",
	"/etc/sinkline/sinkline.yaml",
	"/etc/sinkline/sinkline.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "SINKLINE_CONFIG"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SINKLINE_"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: path if given, else SINKLINE_CONFIG, else the first of
//     DefaultConfigPaths that exists
//  3. Environment Variables: SINKLINE_* overrides for scalar settings
//
// When no sink is configured the default console pipeline is used. The
// result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional unless given explicitly)
	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return finish(k)
}

// Parse loads configuration from YAML bytes over the defaults, without
// consulting files or the environment.
func Parse(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	raw, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := k.Load(mapProvider(raw), nil); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return finish(k)
}

// mapProvider feeds an already parsed map into koanf.
type mapProvider map[string]interface{}

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]interface{}, error) {
	return m, nil
}

// finish unmarshals the merged layers, substitutes the default pipeline
// when no sink is configured and validates the result.
func finish(k *koanf.Koanf) (*Config, error) {
	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if len(cfg.Sinks) == 0 && len(cfg.Rules) == 0 {
		cfg.Sinks, cfg.Rules = defaultPipeline()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				sinkDefaultsHook,
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// blockDefaults are the option values a partially written block inherits.
// Zero-valued numeric options fall back to defaults in the constructors;
// these entries cover values whose zero is meaningful.
var blockDefaults = map[string]map[string]interface{}{
	"buffering": {"sliding_timeout": true},
	"file":      {"sync_on_flush": true},
	"memory":    {"max_lines": 1000},
	"publish":   {"max_reconnects": -1, "reconnect_wait": "2s"},
}

var sinkConfigType = reflect.TypeOf(SinkConfig{})

// sinkDefaultsHook fills missing keys of option blocks before a sink node
// is decoded. It runs for every node, including nested targets.
func sinkDefaultsHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != sinkConfigType {
		return data, nil
	}
	node, ok := data.(map[string]interface{})
	if !ok {
		return data, nil
	}
	var out map[string]interface{}
	for block, defaults := range blockDefaults {
		opts, ok := node[block].(map[string]interface{})
		if !ok {
			continue
		}
		if out == nil {
			out = maps.Clone(node)
		}
		merged := maps.Clone(defaults)
		maps.Copy(merged, opts)
		out[block] = merged
	}
	if out == nil {
		return data, nil
	}
	return out, nil
}

// ResolvePath returns the file Load reads for path, or "" when only the
// defaults and the environment apply.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	return findConfigFile()
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps SINKLINE_* variables to config paths. The sink tree is
// only configurable from the file.
var envMappings = map[string]string{
	// Diagnostic channel
	"sinkline_log_level":     "logging.level",
	"sinkline_log_format":    "logging.format",
	"sinkline_log_caller":    "logging.caller",
	"sinkline_log_timestamp": "logging.timestamp",

	// Runtime
	"sinkline_throw_on_failure": "runtime.throw_on_failure",
	"sinkline_flush_timeout":    "runtime.flush_timeout",
	"sinkline_init_timeout":     "runtime.init_timeout",
	"sinkline_flush_interval":   "runtime.flush_interval",

	// Admin API
	"sinkline_admin_enabled":          "admin.enabled",
	"sinkline_admin_addr":             "admin.addr",
	"sinkline_admin_rate_limit":       "admin.rate_limit",
	"sinkline_admin_max_body_bytes":   "admin.max_body_bytes",
	"sinkline_admin_shutdown_timeout": "admin.shutdown_timeout",

	// Ingest
	"sinkline_ingest_stdin":          "ingest.stdin",
	"sinkline_ingest_logger":         "ingest.logger",
	"sinkline_ingest_format":         "ingest.format",
	"sinkline_ingest_max_line_bytes": "ingest.max_line_bytes",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - SINKLINE_LOG_LEVEL -> logging.level
//   - SINKLINE_ADMIN_ADDR -> admin.addr
//   - SINKLINE_FLUSH_TIMEOUT -> runtime.flush_timeout
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
// The callback typically reloads with Load and reconfigures the runtime;
// it runs on the watcher goroutine.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
