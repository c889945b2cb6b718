// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package database provides the DuckDB-backed record store and device
registry of the backend.

# Tables

  - devices: registered relays; token_id is the only device token jti
    currently accepted for a device
  - ingested_records: one row per unique content fingerprint
    (content_hash UNIQUE); raw_text never changes after insert
  - schema_migrations: applied versioned migrations

# Write Semantics

InsertPendingRecord holds a striped per-hash mutex across the insert and
uses ON CONFLICT DO NOTHING, so concurrent ingests of one notification
resolve to a single row and exactly one caller sees inserted=true.

CompleteExtraction only updates rows whose parse_status is still
'pending'. The ingest path and the pending reconciler can therefore race
on one record and the parse fields are still written once.

# Usage

	db, err := database.New(&cfg.Database)
	if err != nil {
	    return err
	}
	defer db.Close()

	inserted, err := db.InsertPendingRecord(ctx, rec)
*/
package database
