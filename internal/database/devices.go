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
	"time"

	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
)

const deviceColumns = `id, name, token_id, enabled, created_at, last_seen_at`

// CreateDevice registers a device. CreatedAt is set when zero.
func (db *DB) CreateDevice(ctx context.Context, d *models.Device) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "devices", time.Since(start), err) }()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.TokenID, d.Enabled, d.CreatedAt.UTC(), nullTime(d.LastSeenAt))
	if isConstraintViolation(err) {
		return fmt.Errorf("device %s: %w", d.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// GetDevice returns a device by id, or ErrNotFound.
func (db *DB) GetDevice(ctx context.Context, id string) (_ *models.Device, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "devices", time.Since(start), ignoreNotFound(err)) }()

	row := db.conn.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// ListDevices returns all devices, oldest first.
func (db *DB) ListDevices(ctx context.Context) (_ []models.Device, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "devices", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer closeWithLog(rows, "device rows")

	devices := []models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// SetDeviceEnabled enables or disables a device. Disabled devices are
// refused at ingestion.
func (db *DB) SetDeviceEnabled(ctx context.Context, id string, enabled bool) error {
	return db.updateDevice(ctx, `UPDATE devices SET enabled = ? WHERE id = ?`, enabled, id)
}

// UpdateDeviceToken replaces the accepted token id, revoking any token
// issued before.
func (db *DB) UpdateDeviceToken(ctx context.Context, id, tokenID string) error {
	return db.updateDevice(ctx, `UPDATE devices SET token_id = ? WHERE id = ?`, tokenID, id)
}

// TouchDevice records the time of the device's last authenticated request.
func (db *DB) TouchDevice(ctx context.Context, id string, at time.Time) error {
	return db.updateDevice(ctx, `UPDATE devices SET last_seen_at = ? WHERE id = ?`, at.UTC(), id)
}

func (db *DB) updateDevice(ctx context.Context, query string, args ...interface{}) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "devices", time.Since(start), ignoreNotFound(err)) }()

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(s rowScanner) (*models.Device, error) {
	var d models.Device
	var lastSeen sql.NullTime
	if err := s.Scan(&d.ID, &d.Name, &d.TokenID, &d.Enabled, &d.CreatedAt, &lastSeen); err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	if lastSeen.Valid {
		t := lastSeen.Time.UTC()
		d.LastSeenAt = &t
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// ignoreNotFound keeps expected misses out of the query error metric.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
