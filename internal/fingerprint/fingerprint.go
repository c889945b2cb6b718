// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package fingerprint computes the content-addressed identity of a
// notification. The relay uses it to deduplicate before queuing and the
// backend uses it to deduplicate before persisting, so both sides must
// produce byte-identical output for the same (sender, body, time) triple.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Separator is the ASCII unit separator placed between fields. It cannot
// appear in a canonical timestamp and is vanishingly rare in message text.
const Separator = "\x1f"

// CanonicalLayout is the fixed-precision UTC ISO-8601 representation used
// for hashing and for the receivedAt wire field.
const CanonicalLayout = "2006-01-02T15:04:05.000Z"

// ErrEmptyTimestamp is returned by ParseTime for blank input.
var ErrEmptyTimestamp = errors.New("timestamp is empty")

// CanonicalTime formats t as millisecond-precision UTC. Sub-millisecond
// precision is truncated, never rounded.
func CanonicalTime(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(CanonicalLayout)
}

// ParseTime parses an RFC 3339 timestamp with any sub-second precision.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Compute returns the lowercase hex SHA-256 of
// sender + Separator + body + Separator + CanonicalTime(occurredAt).
// Sender and body are hashed exactly as given.
func Compute(sender, body string, occurredAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte(Separator))
	h.Write([]byte(body))
	h.Write([]byte(Separator))
	h.Write([]byte(CanonicalTime(occurredAt)))
	return hex.EncodeToString(h.Sum(nil))
}
