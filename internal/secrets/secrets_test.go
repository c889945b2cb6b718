// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryStore(map[string]string{KeyEndpoint: "https://ingest.test", "blank": "  "})

	v, err := m.Get(ctx, KeyEndpoint)
	if err != nil || v != "https://ingest.test" {
		t.Fatalf("Get endpoint = %q, %v", v, err)
	}

	if _, err := m.Get(ctx, KeyDeviceCredential); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}
	if _, err := m.Get(ctx, "blank"); !errors.Is(err, ErrNotFound) {
		t.Errorf("blank value error = %v, want ErrNotFound", err)
	}

	m.Set(KeyDeviceCredential, "token")
	if v, _ := m.Get(ctx, KeyDeviceCredential); v != "token" {
		t.Errorf("after Set = %q", v)
	}
	m.Delete(KeyDeviceCredential)
	if _, err := m.Get(ctx, KeyDeviceCredential); !errors.Is(err, ErrNotFound) {
		t.Errorf("after Delete error = %v", err)
	}
}

func TestFileStoreReadsOnEveryGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	fs := NewFileStore(path)

	if _, err := fs.Get(ctx, KeyEndpoint); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing file error = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(path, []byte("endpoint: https://a.test\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if v, err := fs.Get(ctx, KeyEndpoint); err != nil || v != "https://a.test" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if _, err := fs.Get(ctx, KeyDeviceCredential); !errors.Is(err, ErrNotFound) {
		t.Errorf("absent key error = %v", err)
	}

	if err := os.WriteFile(path, []byte("endpoint: https://b.test\ndevice_credential: tok\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if v, _ := fs.Get(ctx, KeyEndpoint); v != "https://b.test" {
		t.Errorf("rewritten endpoint = %q", v)
	}
	if v, _ := fs.Get(ctx, KeyDeviceCredential); v != "tok" {
		t.Errorf("credential = %q", v)
	}
}

func TestFileStoreAcceptsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"endpoint": "https://json.test"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	v, err := NewFileStore(path).Get(context.Background(), KeyEndpoint)
	if err != nil || v != "https://json.test" {
		t.Errorf("Get = %q, %v", v, err)
	}
}

func TestFileStoreCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileStore("unused").Get(ctx, KeyEndpoint); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
