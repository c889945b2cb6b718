// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package config

import (
	"time"

	"github.com/tomtom215/momoflow/internal/breaker"
	"github.com/tomtom215/momoflow/internal/connectivity"
	"github.com/tomtom215/momoflow/internal/delivery"
	"github.com/tomtom215/momoflow/internal/outbox"
	"github.com/tomtom215/momoflow/internal/scheduler"
)

// Config holds the configuration of both binaries. The backend reads the
// server, database, security, ingest and extraction sections; the relay
// reads the relay section. Both read filter and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for all settings
//  2. Config File: Optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := database.New(&cfg.Database)
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Security   SecurityConfig   `koanf:"security"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Filter     FilterConfig     `koanf:"filter"`
	Relay      RelayConfig      `koanf:"relay"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds backend HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // "development", "staging", "production"
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // Number of DuckDB threads (0 = use NumCPU)
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // Whether to preserve insertion order (default true)
	SkipIndexes            bool   `koanf:"skip_indexes"`             // Skip secondary index creation (fast test setup)
}

// SecurityConfig holds device and operator authentication settings.
type SecurityConfig struct {
	// DeviceTokenSecret signs device tokens (HS256). At least 32 bytes.
	DeviceTokenSecret string `koanf:"device_token_secret"`

	// DeviceTokenIssuer is the iss claim of issued device tokens.
	DeviceTokenIssuer string `koanf:"device_token_issuer"`

	// DeviceTokenTTL bounds device token lifetime. Zero issues tokens
	// without expiry; revocation then relies on rotation and disabling.
	DeviceTokenTTL time.Duration `koanf:"device_token_ttl"`

	// AdminTokenHash is the bcrypt hash of the operator bearer token.
	// Empty disables the operator API.
	AdminTokenHash string `koanf:"admin_token_hash"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// The ingest endpoint answers within IngestResponseBudget: the synchronous
// extraction deadline plus one bounded store write before and after it.
// Relays must wait longer than this for a response, otherwise a stored
// record is counted as a failed delivery attempt.
const (
	MaxExtractionTimeout = 20 * time.Second
	IngestWriteTimeout   = 5 * time.Second
	IngestResponseBudget = MaxExtractionTimeout + 2*IngestWriteTimeout
)

// IngestConfig holds ingestion endpoint and reconciler settings
type IngestConfig struct {
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
	ExtractionTimeout time.Duration `koanf:"extraction_timeout"`

	// Stale pending records are re-extracted by the reconciler.
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
	ReconcileGrace    time.Duration `koanf:"reconcile_grace"`
	ReconcileBatch    int           `koanf:"reconcile_batch"`
}

// ExtractionConfig describes the provider chain.
type ExtractionConfig struct {
	Primary  ProviderConfig `koanf:"primary"`
	Fallback ProviderConfig `koanf:"fallback"`

	// RulesFallback appends the deterministic regex provider to the chain.
	// It is always used when no model provider is configured.
	RulesFallback bool `koanf:"rules_fallback"`

	Breaker breaker.Config `koanf:"breaker"`
}

// ProviderConfig configures one OpenAI-compatible model endpoint. A
// provider without BaseURL or Model is not part of the chain.
type ProviderConfig struct {
	Name        string        `koanf:"name"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	Temperature float64       `koanf:"temperature"`
}

// Enabled reports whether the provider is configured.
func (p ProviderConfig) Enabled() bool {
	return p.BaseURL != "" && p.Model != ""
}

// FilterConfig overrides the built-in content filter rules. Empty slices
// keep the defaults.
type FilterConfig struct {
	Senders       []string `koanf:"senders"`
	ExtraPatterns []string `koanf:"extra_patterns"`
}

// RelayConfig holds the on-device relay settings.
type RelayConfig struct {
	Outbox       outbox.Config       `koanf:"outbox"`
	Scheduler    scheduler.Config    `koanf:"scheduler"`
	Delivery     delivery.Config     `koanf:"delivery"`
	Connectivity connectivity.Config `koanf:"connectivity"`

	// SecretsFile is the YAML or JSON file holding device_credential and
	// endpoint. It is re-read on every delivery.
	SecretsFile string `koanf:"secrets_file"`

	// Source selects the capture source: "stdin" or "none".
	Source string `koanf:"source"`

	// CaptureListen is the loopback address of the capture HTTP intake.
	// Empty disables it.
	CaptureListen string `koanf:"capture_listen"`

	// MetricsListen serves /metrics for the relay. Empty disables it.
	MetricsListen string `koanf:"metrics_listen"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load loads configuration from defaults, the optional config file and the
// environment, then validates the shared sections.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
