// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package outbox

import "time"

// Config holds outbox configuration.
//
// The relay config layer (koanf) fills this struct from the relay.outbox
// section; see internal/config for the environment variable names.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem (not tmpfs).
	Path string `koanf:"path"`

	// SyncWrites forces fsync after every write. Disabling it trades
	// durability on power loss for throughput.
	SyncWrites bool `koanf:"sync_writes"`

	// MaxAttempts is the number of delivery attempts after which an item is
	// abandoned. DueItems never returns an item that has reached it, and
	// RecoverInFlight abandons those left over from a higher limit.
	MaxAttempts int `koanf:"max_attempts"`

	// LeaseDuration is how long an InFlight claim is held before it expires.
	// Must be longer than the delivery timeout so a live worker never loses
	// its claim mid-request.
	LeaseDuration time.Duration `koanf:"lease_duration"`

	// CompactInterval is the time between compaction runs.
	CompactInterval time.Duration `koanf:"compact_interval"`

	// AbandonedRetention is how long abandoned items are kept for
	// inspection before compaction purges them.
	AbandonedRetention time.Duration `koanf:"abandoned_retention"`

	// BadgerDB tuning options

	// MemTableSize is the size of each memtable in bytes.
	MemTableSize int64 `koanf:"memtable_size"`

	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64 `koanf:"vlog_size"`

	// NumCompactors is the number of compaction workers.
	NumCompactors int `koanf:"num_compactors"`

	// Compression enables Snappy compression for stored items.
	Compression bool `koanf:"compression"`

	// GCRatio is the ratio for value log garbage collection.
	GCRatio float64 `koanf:"gc_ratio"`

	// CloseTimeout is the maximum time Close waits for BadgerDB.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// DefaultConfig returns a Config suited to a phone or small single-board
// relay: durable writes and small tables.
func DefaultConfig() Config {
	return Config{
		Path:               "/data/outbox",
		SyncWrites:         true,
		MaxAttempts:        5,
		LeaseDuration:      2 * time.Minute,
		CompactInterval:    1 * time.Hour,
		AbandonedRetention: 30 * 24 * time.Hour,
		MemTableSize:       16 * 1024 * 1024,
		ValueLogFileSize:   32 * 1024 * 1024,
		NumCompactors:      2,
		Compression:        true,
		GCRatio:            0.5,
		CloseTimeout:       30 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "outbox path is required"}
	}
	if c.MaxAttempts < 1 {
		return &ConfigError{Field: "MaxAttempts", Message: "must be at least 1"}
	}
	if c.LeaseDuration < 30*time.Second {
		return &ConfigError{Field: "LeaseDuration", Message: "must be at least 30 seconds"}
	}
	if c.CompactInterval < time.Minute {
		return &ConfigError{Field: "CompactInterval", Message: "must be at least 1 minute"}
	}
	if c.AbandonedRetention < time.Hour {
		return &ConfigError{Field: "AbandonedRetention", Message: "must be at least 1 hour"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1 exclusive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "outbox config error: " + e.Field + ": " + e.Message
}
