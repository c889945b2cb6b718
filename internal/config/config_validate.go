// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour

	minDeviceTokenSecretLen = 32
	maxIngestBodyBytes      = 1 << 20
)

// Validate checks the sections shared by both binaries. Role-specific
// requirements are checked by ValidateServer and ValidateRelay.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if err := c.validateIngest(); err != nil {
		return err
	}

	if err := c.validateExtraction(); err != nil {
		return err
	}

	return c.validateLogging()
}

// ValidateServer checks what the backend needs beyond the shared sections.
func (c *Config) ValidateServer() error {
	if len(c.Security.DeviceTokenSecret) < minDeviceTokenSecretLen {
		return fmt.Errorf("DEVICE_TOKEN_SECRET must be at least %d characters", minDeviceTokenSecretLen)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS must not contain * in production")
	}
	return nil
}

// ValidateRelay checks what the relay needs beyond the shared sections.
func (c *Config) ValidateRelay() error {
	if err := c.Relay.Outbox.Validate(); err != nil {
		return err
	}
	if err := c.Relay.Scheduler.Validate(); err != nil {
		return err
	}
	if c.Relay.Delivery.Timeout <= IngestResponseBudget {
		return fmt.Errorf("RELAY_DELIVERY_TIMEOUT (%v) must exceed the ingest response budget (%v)",
			c.Relay.Delivery.Timeout, IngestResponseBudget)
	}
	if c.Relay.Outbox.LeaseDuration <= c.Relay.Delivery.Timeout {
		return fmt.Errorf("relay.outbox.lease_duration (%v) must exceed RELAY_DELIVERY_TIMEOUT (%v)",
			c.Relay.Outbox.LeaseDuration, c.Relay.Delivery.Timeout)
	}
	if c.Relay.SecretsFile == "" {
		return fmt.Errorf("RELAY_SECRETS_FILE is required")
	}
	switch c.Relay.Source {
	case "stdin", "none":
	default:
		return fmt.Errorf("RELAY_SOURCE must be one of: stdin, none")
	}
	if c.Relay.CaptureListen != "" && !isLoopbackAddr(c.Relay.CaptureListen) {
		return fmt.Errorf("RELAY_CAPTURE_LISTEN must bind a loopback address, got %s", c.Relay.CaptureListen)
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout <= IngestResponseBudget {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT (%v) must exceed the ingest response budget (%v)",
			c.Server.WriteTimeout, IngestResponseBudget)
	}
	return nil
}

// validateRateLimits validates the rate limit configuration
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateIngest validates ingestion settings
func (c *Config) validateIngest() error {
	if c.Ingest.MaxBodyBytes < 1024 || c.Ingest.MaxBodyBytes > maxIngestBodyBytes {
		return fmt.Errorf("INGEST_MAX_BODY_BYTES must be between 1024 and %d", maxIngestBodyBytes)
	}
	if c.Ingest.ExtractionTimeout <= 0 || c.Ingest.ExtractionTimeout > MaxExtractionTimeout {
		return fmt.Errorf("INGEST_EXTRACTION_TIMEOUT must be positive and at most %v", MaxExtractionTimeout)
	}
	if c.Ingest.ReconcileInterval < time.Second {
		return fmt.Errorf("INGEST_RECONCILE_INTERVAL must be at least 1s")
	}
	if c.Ingest.ReconcileBatch < 1 {
		return fmt.Errorf("INGEST_RECONCILE_BATCH must be at least 1")
	}
	return nil
}

// validateExtraction validates the provider chain
func (c *Config) validateExtraction() error {
	for _, p := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"EXTRACTION_PRIMARY", c.Extraction.Primary},
		{"EXTRACTION_FALLBACK", c.Extraction.Fallback},
	} {
		if !p.cfg.Enabled() {
			continue
		}
		if err := validateHTTPURL(p.cfg.BaseURL, p.name+"_BASE_URL"); err != nil {
			return err
		}
		if p.cfg.Timeout <= 0 {
			return fmt.Errorf("%s_TIMEOUT must be positive", p.name)
		}
		if p.cfg.Timeout > c.Ingest.ExtractionTimeout {
			return fmt.Errorf("%s_TIMEOUT (%v) must not exceed INGEST_EXTRACTION_TIMEOUT (%v)",
				p.name, p.cfg.Timeout, c.Ingest.ExtractionTimeout)
		}
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// hasWildcardCORS reports whether any CORS origin is "*"
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if strings.TrimSpace(origin) == "*" {
			return true
		}
	}
	return false
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
