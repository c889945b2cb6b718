// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/momoflow/internal/breaker"
	"github.com/tomtom215/momoflow/internal/connectivity"
	"github.com/tomtom215/momoflow/internal/delivery"
	"github.com/tomtom215/momoflow/internal/outbox"
	"github.com/tomtom215/momoflow/internal/scheduler"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/momoflow/config.yaml",
	"/etc/momoflow/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second, // covers synchronous extraction
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/momoflow.duckdb",
			MaxMemory:              "512MB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		Security: SecurityConfig{
			DeviceTokenSecret: "",
			DeviceTokenIssuer: "momoflow",
			DeviceTokenTTL:    0,
			AdminTokenHash:    "",
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
		},
		Ingest: IngestConfig{
			MaxBodyBytes:      64 * 1024,
			ExtractionTimeout: MaxExtractionTimeout,
			ReconcileInterval: 5 * time.Minute,
			ReconcileGrace:    2 * time.Minute,
			ReconcileBatch:    20,
		},
		Extraction: ExtractionConfig{
			Primary: ProviderConfig{
				Name:    "primary",
				Timeout: 12 * time.Second,
			},
			Fallback: ProviderConfig{
				Name:    "fallback",
				Timeout: 8 * time.Second,
			},
			RulesFallback: true,
			Breaker:       breaker.DefaultConfig(),
		},
		Filter: FilterConfig{
			Senders:       []string{},
			ExtraPatterns: []string{},
		},
		Relay: RelayConfig{
			Outbox:        outbox.DefaultConfig(),
			Scheduler:     scheduler.DefaultConfig(),
			Delivery:      delivery.DefaultConfig(),
			Connectivity:  connectivity.DefaultConfig(),
			SecretsFile:   "/data/relay-secrets.yaml",
			Source:        "stdin",
			CaptureListen: "",
			MetricsListen: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// The outbox attempt limit is authoritative; the scheduler must abandon
	// at the same count the outbox stops returning items.
	cfg.Relay.Scheduler.MaxAttempts = cfg.Relay.Outbox.MaxAttempts

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"filter.senders",
	"filter.extra_patterns",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak
// into the configuration.
var envMappings = map[string]string{
	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Security
	"device_token_secret": "security.device_token_secret",
	"device_token_issuer": "security.device_token_issuer",
	"device_token_ttl":    "security.device_token_ttl",
	"admin_token_hash":    "security.admin_token_hash",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Ingest
	"ingest_max_body_bytes":     "ingest.max_body_bytes",
	"ingest_extraction_timeout": "ingest.extraction_timeout",
	"ingest_reconcile_interval": "ingest.reconcile_interval",
	"ingest_reconcile_grace":    "ingest.reconcile_grace",
	"ingest_reconcile_batch":    "ingest.reconcile_batch",

	// Extraction
	"extraction_primary_name":      "extraction.primary.name",
	"extraction_primary_base_url":  "extraction.primary.base_url",
	"extraction_primary_api_key":   "extraction.primary.api_key",
	"extraction_primary_model":     "extraction.primary.model",
	"extraction_primary_timeout":   "extraction.primary.timeout",
	"extraction_fallback_name":     "extraction.fallback.name",
	"extraction_fallback_base_url": "extraction.fallback.base_url",
	"extraction_fallback_api_key":  "extraction.fallback.api_key",
	"extraction_fallback_model":    "extraction.fallback.model",
	"extraction_fallback_timeout":  "extraction.fallback.timeout",
	"extraction_rules_fallback":    "extraction.rules_fallback",

	// Filter
	"filter_senders":        "filter.senders",
	"filter_extra_patterns": "filter.extra_patterns",

	// Relay
	"relay_outbox_path":           "relay.outbox.path",
	"relay_outbox_sync_writes":    "relay.outbox.sync_writes",
	"relay_max_attempts":          "relay.outbox.max_attempts",
	"relay_abandoned_retention":   "relay.outbox.abandoned_retention",
	"relay_interval":              "relay.scheduler.interval",
	"relay_base_delay":            "relay.scheduler.base_delay",
	"relay_batch_size":            "relay.scheduler.batch_size",
	"relay_workers":               "relay.scheduler.workers",
	"relay_send_rate":             "relay.scheduler.send_rate",
	"relay_delivery_timeout":      "relay.delivery.timeout",
	"relay_connectivity_interval": "relay.connectivity.interval",
	"relay_secrets_file":          "relay.secrets_file",
	"relay_source":                "relay.source",
	"relay_capture_listen":        "relay.capture_listen",
	"relay_metrics_listen":        "relay.metrics_listen",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - RELAY_MAX_ATTEMPTS -> relay.outbox.max_attempts
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
