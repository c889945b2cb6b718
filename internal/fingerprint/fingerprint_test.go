// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func TestCanonicalTime(t *testing.T) {
	t.Parallel()

	accra := time.FixedZone("GMT+2", 2*60*60)
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), "2026-03-01T09:30:00.000Z"},
		{"offset converted", time.Date(2026, 3, 1, 11, 30, 0, 0, accra), "2026-03-01T09:30:00.000Z"},
		{"millis kept", time.Date(2026, 3, 1, 9, 30, 0, 123_000_000, time.UTC), "2026-03-01T09:30:00.123Z"},
		{"sub-millis truncated", time.Date(2026, 3, 1, 9, 30, 0, 123_999_999, time.UTC), "2026-03-01T09:30:00.123Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CanonicalTime(tt.in); got != tt.want {
				t.Errorf("CanonicalTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeMatchesManualDigest(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	sum := sha256.Sum256([]byte("MTN MoMo\x1fYou have received 5000 RWF from John Doe\x1f2026-03-01T09:30:00.000Z"))
	want := hex.EncodeToString(sum[:])

	if got := Compute("MTN MoMo", "You have received 5000 RWF from John Doe", at); got != want {
		t.Errorf("Compute() = %s, want %s", got, want)
	}
}

func TestComputeDeterministicAcrossZones(t *testing.T) {
	t.Parallel()

	utc := time.Date(2026, 3, 1, 9, 30, 0, 500_000, time.UTC)
	local := utc.In(time.FixedZone("EAT", 3*60*60))

	a := Compute("MoMo", "body", utc)
	b := Compute("MoMo", "body", local)
	if a != b {
		t.Errorf("fingerprint differs across zones: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
}

func TestComputeSensitiveToEachField(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	base := Compute("MoMo", "body", at)

	variants := map[string]string{
		"sender": Compute("MoMo2", "body", at),
		"body":   Compute("MoMo", "body ", at),
		"time":   Compute("MoMo", "body", at.Add(time.Millisecond)),
		"shift":  Compute("MoM", "obody", at),
	}
	for name, v := range variants {
		if v == base {
			t.Errorf("changing %s did not change fingerprint", name)
		}
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	got, err := ParseTime("2026-03-01T11:30:00.123456+02:00")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if CanonicalTime(got) != "2026-03-01T09:30:00.123Z" {
		t.Errorf("ParseTime canonical = %s", CanonicalTime(got))
	}

	if _, err := ParseTime("  "); !errors.Is(err, ErrEmptyTimestamp) {
		t.Errorf("ParseTime(blank) error = %v, want ErrEmptyTimestamp", err)
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime(garbage) should fail")
	}
}
