// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/models"
)

func seedPending(t *testing.T, store *memStore, id, hash string, ingestedAt time.Time) {
	t.Helper()
	ok, err := store.InsertPendingRecord(context.Background(), &models.IngestedRecord{
		ID:          id,
		DeviceRef:   "dev-1",
		RawText:     testBody,
		Sender:      testSender,
		ContentHash: hash,
		IngestedAt:  ingestedAt,
	})
	if err != nil || !ok {
		t.Fatalf("seed %s: inserted=%v err=%v", id, ok, err)
	}
}

func TestReconcilerRunOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	ex := &fakeExtractor{}
	svc := newTestService(store, ex)
	svc.now = func() time.Time { return now }

	seedPending(t, store, "old", "h-old", now.Add(-time.Hour))
	seedPending(t, store, "fresh", "h-fresh", now.Add(-10*time.Second))

	r := NewReconciler(svc, store, config.IngestConfig{ReconcileGrace: 2 * time.Minute, ReconcileBatch: 10})
	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n != 1 {
		t.Errorf("completed = %d, want 1", n)
	}
	if got := store.record("old").ParseStatus; got != models.ParseParsed {
		t.Errorf("old status = %q, want parsed", got)
	}
	if got := store.record("fresh").ParseStatus; got != models.ParsePending {
		t.Errorf("fresh status = %q, want pending within grace", got)
	}

	// A second pass finds nothing left to do.
	if n, _ := r.RunOnce(context.Background()); n != 0 {
		t.Errorf("second pass completed = %d, want 0", n)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("extraction calls = %d, want 1", ex.calls.Load())
	}
}

func TestReconcilerMarksFailures(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	store := newMemStore()
	svc := newTestService(store, &fakeExtractor{err: errors.New("all down")})
	seedPending(t, store, "stuck", "h-stuck", now.Add(-time.Hour))

	r := NewReconciler(svc, store, config.IngestConfig{})
	if n, err := r.RunOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("RunOnce() = %d, %v", n, err)
	}
	rec := store.record("stuck")
	if rec.ParseStatus != models.ParseFailed || rec.ExtractionError != "all down" {
		t.Errorf("record = %+v", rec)
	}
}

func TestReconcilerGraceCoversExtractionTimeout(t *testing.T) {
	t.Parallel()

	svc := NewService(newMemStore(), fakeAuth{}, nil, &fakeExtractor{}, config.IngestConfig{ExtractionTimeout: 10 * time.Minute})
	r := NewReconciler(svc, newMemStore(), config.IngestConfig{ReconcileGrace: time.Minute})
	if r.grace != 10*time.Minute {
		t.Errorf("grace = %v, want the extraction timeout", r.grace)
	}
}

func TestReconcilerServeStops(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := newTestService(store, &fakeExtractor{})
	r := NewReconciler(svc, store, config.IngestConfig{ReconcileInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if r.String() != "pending-reconciler" {
		t.Errorf("String() = %q", r.String())
	}
}
