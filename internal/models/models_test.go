// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseStatusValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ParseStatus
		want   bool
	}{
		{ParsePending, true},
		{ParseParsed, true},
		{ParseFailed, true},
		{"", false},
		{"PARSED", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("ParseStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestExtractedFieldsEmpty(t *testing.T) {
	t.Parallel()

	f := &ExtractedFields{RawText: "You have received 100 GHS"}
	if !f.Empty() {
		t.Error("fields with only RawText should be empty")
	}

	amount := 100.0
	f.Amount = &amount
	if f.Empty() {
		t.Error("fields with an amount should not be empty")
	}
}

func TestIngestResponseOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(IngestResponse{OK: true, Skipped: true, Reason: "no_pattern_match"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)

	for _, want := range []string{`"ok":true`, `"skipped":true`, `"duplicate":false`, `"reason":"no_pattern_match"`} {
		if !strings.Contains(got, want) {
			t.Errorf("response %s missing %s", got, want)
		}
	}
	for _, unwanted := range []string{`"id"`, `"parseStatus"`} {
		if strings.Contains(got, unwanted) {
			t.Errorf("response %s should omit %s", got, unwanted)
		}
	}
}

func TestIngestResponseAlwaysCarriesFlags(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(IngestResponse{OK: true, ID: "rec-1", ParseStatus: ParseParsed})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"duplicate":false`, `"skipped":false`} {
		if !strings.Contains(got, want) {
			t.Errorf("response %s missing %s", got, want)
		}
	}
}

func TestDeviceHidesTokenID(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Device{ID: "dev-1", Name: "phone", TokenID: "secret-jti", Enabled: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "secret-jti") {
		t.Errorf("device JSON leaked token id: %s", data)
	}
}
