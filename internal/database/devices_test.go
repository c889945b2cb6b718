// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/momoflow/internal/models"
)

func TestDeviceLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	d := &models.Device{ID: "dev-1", Name: "Shop phone", TokenID: "jti-1", Enabled: true}
	if err := db.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if d.CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled")
	}

	if err := db.CreateDevice(ctx, &models.Device{ID: "dev-1", Name: "again", TokenID: "x"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreateDevice() error = %v, want ErrAlreadyExists", err)
	}

	got, err := db.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != "Shop phone" || got.TokenID != "jti-1" || !got.Enabled || got.LastSeenAt != nil {
		t.Errorf("GetDevice() = %+v", got)
	}

	if err := db.SetDeviceEnabled(ctx, "dev-1", false); err != nil {
		t.Fatalf("SetDeviceEnabled() error = %v", err)
	}
	if err := db.UpdateDeviceToken(ctx, "dev-1", "jti-2"); err != nil {
		t.Fatalf("UpdateDeviceToken() error = %v", err)
	}
	seen := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	if err := db.TouchDevice(ctx, "dev-1", seen); err != nil {
		t.Fatalf("TouchDevice() error = %v", err)
	}

	got, _ = db.GetDevice(ctx, "dev-1")
	if got.Enabled || got.TokenID != "jti-2" {
		t.Errorf("after updates = %+v", got)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(seen) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, seen)
	}
}

func TestDeviceNotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetDevice(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrNotFound", err)
	}
	for name, err := range map[string]error{
		"SetDeviceEnabled":  db.SetDeviceEnabled(ctx, "missing", true),
		"UpdateDeviceToken": db.UpdateDeviceToken(ctx, "missing", "jti"),
		"TouchDevice":       db.TouchDevice(ctx, "missing", time.Now()),
	} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s() error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestListDevices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	empty, err := db.ListDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListDevices() on empty registry = %v, want empty non-nil slice", empty)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a", "c"} {
		d := &models.Device{ID: id, Name: id, TokenID: "jti-" + id, Enabled: true, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := db.CreateDevice(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	devices, err := db.ListDevices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, d := range devices {
		order = append(order, d.ID)
	}
	if len(order) != 3 || order[0] != "b" || order[1] != "a" || order[2] != "c" {
		t.Errorf("order = %v, want [b a c]", order)
	}
}
