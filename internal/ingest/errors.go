// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package ingest

import (
	"errors"
	"fmt"
)

// ErrUnavailable means the record store or device registry could not be
// reached. Clients should retry; the HTTP layer answers 503.
var ErrUnavailable = errors.New("ingestion temporarily unavailable")

// RejectKind classifies a request the service refused.
type RejectKind int

const (
	// Invalid means required fields were missing or malformed (400).
	Invalid RejectKind = iota
	// Unauthorized means the credential identified no device (401).
	Unauthorized
	// Forbidden means the device is disabled or its token revoked (403).
	Forbidden
)

// String returns the lowercase kind name used in logs and metrics.
func (k RejectKind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// RejectError is returned by Service.Ingest for requests that will never
// succeed as sent. Retrying the same request is pointless.
type RejectError struct {
	Kind   RejectKind
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *RejectError) Unwrap() error { return e.Err }

func reject(kind RejectKind, reason string, err error) *RejectError {
	return &RejectError{Kind: kind, Reason: reason, Err: err}
}

// AsReject returns the RejectError in err's chain, if any.
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
