// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/momoflow/internal/config"
)

// testDBSemaphore limits concurrent DuckDB instances in tests. The
// semaphore is held for the entire test, not just creation, because
// concurrent CGO calls from many connections can hang under CI pressure.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates an in-memory database with a creation timeout.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:                   ":memory:",
		MaxMemory:              "256MB",
		PreserveInsertionOrder: true,
	}
	return openWithTimeout(t, cfg)
}

func openWithTimeout(t *testing.T, cfg *config.DatabaseConfig) *DB {
	t.Helper()

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatal("Timed out creating test database")
		return nil
	}
}

func TestNewAppliesMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	version, err := db.GetCurrentSchemaVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentSchemaVersion() error = %v", err)
	}
	if version != len(db.getMigrations()) {
		t.Errorf("schema version = %d, want %d", version, len(db.getMigrations()))
	}

	history, err := db.GetMigrationHistory(ctx)
	if err != nil {
		t.Fatalf("GetMigrationHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].Name != "add_records_device_index" {
		t.Errorf("history = %+v", history)
	}
	if history[0].AppliedAt.IsZero() {
		t.Error("AppliedAt should be populated")
	}
}

func TestReopenFileDatabase(t *testing.T) {
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.DatabaseConfig{
		Path:                   filepath.Join(t.TempDir(), "nested", "momoflow.duckdb"),
		MaxMemory:              "256MB",
		PreserveInsertionOrder: true,
		SkipIndexes:            true,
	}
	ctx := context.Background()

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec := testRecord("hash-reopen")
	if _, err := db.InsertPendingRecord(ctx, rec); err != nil {
		t.Fatalf("InsertPendingRecord() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Migrations must not re-run on an existing file.
	db = openWithTimeout(t, cfg)
	got, err := db.GetRecordByHash(ctx, "hash-reopen")
	if err != nil {
		t.Fatalf("record lost across reopen: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if v, _ := db.GetCurrentSchemaVersion(ctx); v != 1 {
		t.Errorf("schema version after reopen = %d, want 1", v)
	}
}

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg        string
		conflict   bool
		constraint bool
	}{
		{"TransactionContext Error: Transaction conflict: cannot update", true, false},
		{"Conflict on update!", true, false},
		{`Constraint Error: Duplicate key "id: dev-1" violates primary key constraint`, false, true},
		{"IO Error: disk full", false, false},
	}
	for _, tt := range tests {
		err := errString(tt.msg)
		if got := isTransactionConflict(err); got != tt.conflict {
			t.Errorf("isTransactionConflict(%q) = %v", tt.msg, got)
		}
		if got := isConstraintViolation(err); got != tt.constraint {
			t.Errorf("isConstraintViolation(%q) = %v", tt.msg, got)
		}
	}
	if isTransactionConflict(nil) || isConstraintViolation(nil) {
		t.Error("nil error should not classify")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
