// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/database/query"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
)

const (
	recordColumns = `id, device_ref, raw_text, sender, received_at, content_hash, origin_slot,
		parse_status, parse_attempts, extracted, extraction_model, extraction_error, ingested_at, parsed_at`

	defaultListLimit = 50
	maxListLimit     = 500

	// insertRetries bounds retries of an insert that hit a DuckDB
	// transaction conflict.
	insertRetries = 3
)

// ExtractionUpdate is the final parse state written to a pending record.
type ExtractionUpdate struct {
	Status   models.ParseStatus
	Fields   *models.ExtractedFields
	Model    string
	Error    string
	Attempts int
	ParsedAt time.Time
}

// acquireHashLock locks the stripe owning contentHash and returns it.
func (db *DB) acquireHashLock(contentHash string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(contentHash))
	mu := &db.hashLocks[h.Sum32()%hashLockStripes]
	mu.Lock()
	return mu
}

// GetRecordByHash returns the record with the given content hash, or
// ErrNotFound.
func (db *DB) GetRecordByHash(ctx context.Context, contentHash string) (_ *models.IngestedRecord, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("select_by_hash", "ingested_records", time.Since(start), ignoreNotFound(err))
	}()

	return db.getRecordWhere(ctx, "content_hash = ?", contentHash)
}

// GetRecord returns a record by id, or ErrNotFound.
func (db *DB) GetRecord(ctx context.Context, id string) (_ *models.IngestedRecord, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "ingested_records", time.Since(start), ignoreNotFound(err)) }()

	return db.getRecordWhere(ctx, "id = ?", id)
}

func (db *DB) getRecordWhere(ctx context.Context, clause string, arg interface{}) (*models.IngestedRecord, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM ingested_records WHERE `+clause, arg)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// InsertPendingRecord stores rec with parse_status pending unless a record
// with the same content hash exists. It reports whether this call inserted
// the row. Concurrent calls for one hash in this process are serialized by
// a striped lock; the UNIQUE constraint with ON CONFLICT DO NOTHING covers
// any other writer.
func (db *DB) InsertPendingRecord(ctx context.Context, rec *models.IngestedRecord) (inserted bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "ingested_records", time.Since(start), err) }()

	mu := db.acquireHashLock(rec.ContentHash)
	defer mu.Unlock()

	if rec.IngestedAt.IsZero() {
		rec.IngestedAt = time.Now().UTC()
	}
	rec.ParseStatus = models.ParsePending

	var originSlot sql.NullInt64
	if rec.OriginSlot != nil {
		originSlot = sql.NullInt64{Int64: int64(*rec.OriginSlot), Valid: true}
	}

	for attempt := 0; attempt < insertRetries; attempt++ {
		var res sql.Result
		res, err = db.conn.ExecContext(ctx,
			`INSERT INTO ingested_records (id, device_ref, raw_text, sender, received_at, content_hash,
				origin_slot, parse_status, parse_attempts, ingested_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT DO NOTHING`,
			rec.ID, rec.DeviceRef, rec.RawText, rec.Sender, rec.ReceivedAt.UTC(), rec.ContentHash,
			originSlot, string(models.ParsePending), rec.IngestedAt.UTC())
		if err == nil {
			n, rerr := res.RowsAffected()
			if rerr != nil {
				return false, fmt.Errorf("failed to read affected rows: %w", rerr)
			}
			return n > 0, nil
		}

		if ctx.Err() != nil {
			return false, fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}
		if !isTransactionConflict(err) {
			break
		}

		// Another writer touched the table; retry with a short backoff.
		backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return false, fmt.Errorf("failed to insert record: %w", err)
}

// CompleteExtraction writes the final parse state. The update only applies
// while the record is still pending, so each record's parse fields change
// at most once; updated is false when another writer finished first.
func (db *DB) CompleteExtraction(ctx context.Context, id string, u ExtractionUpdate) (updated bool, err error) {
	if u.Status != models.ParseParsed && u.Status != models.ParseFailed {
		return false, fmt.Errorf("%w: status %q", ErrInvalidUpdate, u.Status)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "ingested_records", time.Since(start), err) }()

	var extracted sql.NullString
	if u.Fields != nil {
		data, merr := json.Marshal(u.Fields)
		if merr != nil {
			return false, fmt.Errorf("failed to encode extracted fields: %w", merr)
		}
		extracted = sql.NullString{String: string(data), Valid: true}
	}
	parsedAt := u.ParsedAt
	if parsedAt.IsZero() {
		parsedAt = time.Now()
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE ingested_records
		SET parse_status = ?, parse_attempts = parse_attempts + ?, extracted = ?,
			extraction_model = ?, extraction_error = ?, parsed_at = ?
		WHERE id = ? AND parse_status = 'pending'`,
		string(u.Status), u.Attempts, extracted, nullString(u.Model), nullString(u.Error), parsedAt.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ListRecords returns records matching f, newest first.
func (db *DB) ListRecords(ctx context.Context, f models.RecordFilter) (_ []models.IngestedRecord, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list", "ingested_records", time.Since(start), err) }()

	wb := query.NewWhereBuilder().
		AddEquals("parse_status", string(f.Status)).
		AddEquals("device_ref", f.DeviceID).
		AddEquals("sender", f.Sender).
		AddTimeRange("received_at", f.ReceivedFrom, f.ReceivedTo)
	where, args := wb.BuildWithPrefix()

	limit, offset := clampPage(f.Limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM ingested_records %s ORDER BY ingested_at DESC, id LIMIT %d OFFSET %d`,
		recordColumns, where, limit, offset)

	return db.queryRecords(ctx, q, args...)
}

// ListStalePending returns records still pending that were ingested before
// olderThan, oldest first.
func (db *DB) ListStalePending(ctx context.Context, olderThan time.Time, limit int) (_ []models.IngestedRecord, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_stale", "ingested_records", time.Since(start), err) }()

	limit, _ = clampPage(limit, 0)
	where, args := query.NewWhereBuilder().
		AddEquals("parse_status", string(models.ParsePending)).
		AddTimeRange("ingested_at", nil, &olderThan).
		BuildWithPrefix()
	q := fmt.Sprintf(`SELECT %s FROM ingested_records %s ORDER BY ingested_at, id LIMIT %d`, recordColumns, where, limit)

	return db.queryRecords(ctx, q, args...)
}

// CountByStatus returns the number of records in each parse status.
func (db *DB) CountByStatus(ctx context.Context) (_ models.StatusCounts, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count", "ingested_records", time.Since(start), err) }()

	var counts models.StatusCounts
	rows, err := db.conn.QueryContext(ctx, `SELECT parse_status, COUNT(*) FROM ingested_records GROUP BY parse_status`)
	if err != nil {
		return counts, fmt.Errorf("failed to count records: %w", err)
	}
	defer closeWithLog(rows, "status count rows")

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan count: %w", err)
		}
		switch models.ParseStatus(status) {
		case models.ParsePending:
			counts.Pending = n
		case models.ParseParsed:
			counts.Parsed = n
		case models.ParseFailed:
			counts.Failed = n
		}
		counts.Total += n
	}
	return counts, rows.Err()
}

func (db *DB) queryRecords(ctx context.Context, q string, args ...interface{}) ([]models.IngestedRecord, error) {
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer closeWithLog(rows, "record rows")

	records := []models.IngestedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(s rowScanner) (*models.IngestedRecord, error) {
	var (
		rec        models.IngestedRecord
		status     string
		originSlot sql.NullInt64
		extracted  sql.NullString
		model      sql.NullString
		extractErr sql.NullString
		parsedAt   sql.NullTime
	)
	if err := s.Scan(&rec.ID, &rec.DeviceRef, &rec.RawText, &rec.Sender, &rec.ReceivedAt, &rec.ContentHash,
		&originSlot, &status, &rec.ParseAttempts, &extracted, &model, &extractErr, &rec.IngestedAt, &parsedAt); err != nil {
		return nil, err
	}

	rec.ParseStatus = models.ParseStatus(status)
	rec.ReceivedAt = rec.ReceivedAt.UTC()
	rec.IngestedAt = rec.IngestedAt.UTC()
	rec.ExtractionModel = model.String
	rec.ExtractionError = extractErr.String
	if originSlot.Valid {
		slot := int(originSlot.Int64)
		rec.OriginSlot = &slot
	}
	if parsedAt.Valid {
		t := parsedAt.Time.UTC()
		rec.ParsedAt = &t
	}
	if extracted.Valid && extracted.String != "" {
		var fields models.ExtractedFields
		if err := json.Unmarshal([]byte(extracted.String), &fields); err != nil {
			return nil, fmt.Errorf("failed to decode extracted fields for %s: %w", rec.ID, err)
		}
		rec.Extracted = &fields
	}
	return &rec, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
