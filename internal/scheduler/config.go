// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package scheduler

import (
	"fmt"
	"time"
)

// Config holds retry scheduler settings.
type Config struct {
	// Interval is the time between recurring cycles.
	Interval time.Duration `koanf:"interval"`

	// BaseDelay is the backoff base; see Delay.
	BaseDelay time.Duration `koanf:"base_delay"`

	// MaxAttempts abandons an item once its attempt count reaches it.
	// Must match the outbox MaxAttempts.
	MaxAttempts int `koanf:"max_attempts"`

	// BatchSize bounds the due items read per cycle.
	BatchSize int `koanf:"batch_size"`

	// Workers bounds concurrent deliveries within a cycle.
	Workers int `koanf:"workers"`

	// SendRate paces deliveries in requests per second. Zero disables pacing.
	SendRate float64 `koanf:"send_rate"`

	// SendBurst is the pacing burst size.
	SendBurst int `koanf:"send_burst"`
}

// DefaultConfig returns the default scheduler settings.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		BaseDelay:   60 * time.Second,
		MaxAttempts: 5,
		BatchSize:   50,
		Workers:     4,
		SendRate:    0,
		SendBurst:   1,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("scheduler base delay must be positive")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("scheduler max attempts must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("scheduler batch size must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("scheduler workers must be at least 1")
	}
	if c.SendRate < 0 {
		return fmt.Errorf("scheduler send rate must not be negative")
	}
	if c.SendRate > 0 && c.SendBurst < 1 {
		return fmt.Errorf("scheduler send burst must be at least 1 when pacing is enabled")
	}
	return nil
}
