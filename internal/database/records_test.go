// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/momoflow/internal/models"
)

var testReceivedAt = time.Date(2026, 5, 4, 9, 30, 15, 123_000_000, time.UTC)

func testRecord(hash string) *models.IngestedRecord {
	slot := 1
	return &models.IngestedRecord{
		ID:          uuid.New().String(),
		DeviceRef:   "dev-1",
		RawText:     "You have received GHS 50.00 from KWAME MENSAH. Transaction ID: 12345.",
		Sender:      "MoMo",
		ReceivedAt:  testReceivedAt,
		ContentHash: hash,
		OriginSlot:  &slot,
	}
}

func ptr[T any](v T) *T { return &v }

func TestInsertPendingRecord(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("hash-1")
	inserted, err := db.InsertPendingRecord(ctx, rec)
	if err != nil {
		t.Fatalf("InsertPendingRecord() error = %v", err)
	}
	if !inserted {
		t.Fatal("first insert should report inserted")
	}

	got, err := db.GetRecordByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetRecordByHash() error = %v", err)
	}
	if got.ID != rec.ID || got.RawText != rec.RawText || got.Sender != "MoMo" {
		t.Errorf("stored record = %+v", got)
	}
	if got.ParseStatus != models.ParsePending {
		t.Errorf("ParseStatus = %q, want pending", got.ParseStatus)
	}
	if !got.ReceivedAt.Equal(testReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, testReceivedAt)
	}
	if got.OriginSlot == nil || *got.OriginSlot != 1 {
		t.Errorf("OriginSlot = %v, want 1", got.OriginSlot)
	}
	if got.Extracted != nil || got.ParsedAt != nil {
		t.Error("pending record should have no extraction result")
	}

	// Same hash, different id: ignored.
	dup := testRecord("hash-1")
	inserted, err = db.InsertPendingRecord(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate InsertPendingRecord() error = %v", err)
	}
	if inserted {
		t.Error("duplicate hash should not be inserted")
	}
	if _, err := db.GetRecord(ctx, dup.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord(dup) error = %v, want ErrNotFound", err)
	}
}

func TestInsertPendingRecordConcurrentSameHash(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	var winners atomic.Int32
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := db.InsertPendingRecord(ctx, testRecord("hash-race"))
			if err != nil {
				errs <- err
				return
			}
			if inserted {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent insert error: %v", err)
	}
	if got := winners.Load(); got != 1 {
		t.Errorf("winners = %d, want exactly 1", got)
	}
	counts, err := db.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Total != 1 {
		t.Errorf("Total = %d, want 1", counts.Total)
	}
}

func TestCompleteExtractionOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("hash-extract")
	if _, err := db.InsertPendingRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	fields := &models.ExtractedFields{
		Amount:   ptr(50.0),
		Currency: ptr("GHS"),
		RawText:  rec.RawText,
	}
	updated, err := db.CompleteExtraction(ctx, rec.ID, ExtractionUpdate{
		Status:   models.ParseParsed,
		Fields:   fields,
		Model:    "gpt-4o-mini",
		Attempts: 2,
	})
	if err != nil {
		t.Fatalf("CompleteExtraction() error = %v", err)
	}
	if !updated {
		t.Fatal("first completion should update")
	}

	got, err := db.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ParseStatus != models.ParseParsed || got.ExtractionModel != "gpt-4o-mini" || got.ParseAttempts != 2 {
		t.Errorf("record after extraction = %+v", got)
	}
	if got.Extracted == nil || got.Extracted.Amount == nil || *got.Extracted.Amount != 50 || *got.Extracted.Currency != "GHS" {
		t.Errorf("Extracted = %+v", got.Extracted)
	}
	if got.Extracted.RawText != rec.RawText {
		t.Error("extracted raw text should be the verbatim body")
	}
	if got.ParsedAt == nil {
		t.Error("ParsedAt should be set")
	}

	// A later writer (e.g. the reconciler) must not overwrite.
	updated, err = db.CompleteExtraction(ctx, rec.ID, ExtractionUpdate{Status: models.ParseFailed, Error: "late"})
	if err != nil {
		t.Fatal(err)
	}
	if updated {
		t.Error("second completion should be a no-op")
	}
	got, _ = db.GetRecord(ctx, rec.ID)
	if got.ParseStatus != models.ParseParsed || got.ExtractionError != "" {
		t.Errorf("record overwritten: %+v", got)
	}
}

func TestCompleteExtractionRejectsPending(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.CompleteExtraction(context.Background(), "any", ExtractionUpdate{Status: models.ParsePending})
	if !errors.Is(err, ErrInvalidUpdate) {
		t.Errorf("error = %v, want ErrInvalidUpdate", err)
	}
}

func TestListRecordsAndCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, spec := range []struct {
		device string
		status models.ParseStatus
	}{
		{"dev-1", models.ParseParsed},
		{"dev-1", models.ParseFailed},
		{"dev-2", models.ParseParsed},
		{"dev-2", models.ParsePending},
	} {
		rec := testRecord(uuid.New().String())
		rec.DeviceRef = spec.device
		rec.ReceivedAt = base.Add(time.Duration(i) * time.Hour)
		rec.IngestedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := db.InsertPendingRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if spec.status != models.ParsePending {
			if _, err := db.CompleteExtraction(ctx, rec.ID, ExtractionUpdate{Status: spec.status, Attempts: 1}); err != nil {
				t.Fatal(err)
			}
		}
	}

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	tests := []struct {
		name   string
		filter models.RecordFilter
		want   int
	}{
		{"all", models.RecordFilter{}, 4},
		{"by status", models.RecordFilter{Status: models.ParseParsed}, 2},
		{"by device", models.RecordFilter{DeviceID: "dev-2"}, 2},
		{"by device and status", models.RecordFilter{DeviceID: "dev-1", Status: models.ParseFailed}, 1},
		{"received window", models.RecordFilter{ReceivedFrom: &from, ReceivedTo: &to}, 2},
		{"limit", models.RecordFilter{Limit: 3}, 3},
		{"offset", models.RecordFilter{Offset: 3}, 1},
		{"unknown sender", models.RecordFilter{Sender: "Nobody"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListRecords(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRecords() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	all, _ := db.ListRecords(ctx, models.RecordFilter{})
	if all[0].DeviceRef != "dev-2" || all[0].ParseStatus != models.ParsePending {
		t.Errorf("newest first: got %+v", all[0])
	}

	counts, err := db.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := models.StatusCounts{Pending: 1, Parsed: 2, Failed: 1, Total: 4}
	if counts != want {
		t.Errorf("CountByStatus() = %+v, want %+v", counts, want)
	}
}

func TestListStalePending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	old := testRecord("hash-old")
	old.IngestedAt = now.Add(-10 * time.Minute)
	fresh := testRecord("hash-fresh")
	fresh.IngestedAt = now.Add(-30 * time.Second)
	done := testRecord("hash-done")
	done.IngestedAt = now.Add(-time.Hour)

	for _, r := range []*models.IngestedRecord{old, fresh, done} {
		if _, err := db.InsertPendingRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.CompleteExtraction(ctx, done.ID, ExtractionUpdate{Status: models.ParseFailed}); err != nil {
		t.Fatal(err)
	}

	stale, err := db.ListStalePending(ctx, now.Add(-2*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListStalePending() error = %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Errorf("stale = %+v, want only %s", stale, old.ID)
	}
}

func TestClampPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, defaultListLimit, 0},
		{10, 5, 10, 5},
		{10000, -1, maxListLimit, 0},
	}
	for _, tt := range tests {
		l, o := clampPage(tt.limit, tt.offset)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.offset, l, o, tt.wantLimit, tt.wantOffset)
		}
	}
}
