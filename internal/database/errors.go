// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package database

import (
	"errors"
	"io"

	"github.com/tomtom215/momoflow/internal/logging"
)

var (
	// ErrNotFound is returned when a device or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a device id is already registered.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidUpdate is returned when an extraction result would leave a
	// record pending.
	ErrInvalidUpdate = errors.New("invalid extraction update")
)

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
