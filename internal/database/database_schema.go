// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the CREATE TABLE statements.
//
// Timestamps are plain TIMESTAMP holding UTC; TIMESTAMPTZ needs the ICU
// extension, which is never loaded. parse_status carries no index because
// DuckDB rewrites indexed columns on UPDATE as delete plus insert, which
// would trip the content_hash uniqueness check.
func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			token_id TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS ingested_records (
			id TEXT PRIMARY KEY,
			device_ref TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			sender TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			origin_slot INTEGER,
			parse_status TEXT NOT NULL DEFAULT 'pending',
			parse_attempts INTEGER NOT NULL DEFAULT 0,
			extracted TEXT,
			extraction_model TEXT,
			extraction_error TEXT,
			ingested_at TIMESTAMP NOT NULL,
			parsed_at TIMESTAMP
		);`,
	}
}

// createIndexes creates secondary indexes unless disabled for fast test setup.
func (db *DB) createIndexes() error {
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}
	return db.CreateIndexes()
}

// CreateIndexes creates all secondary indexes.
func (db *DB) CreateIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}

	return nil
}

// getIndexQueries returns index statements over columns that are never
// updated after insert.
func (db *DB) getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_records_received_at ON ingested_records(received_at);`,
		`CREATE INDEX IF NOT EXISTS idx_records_ingested_at ON ingested_records(ingested_at);`,
	}
}
