// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package secrets provides the relay's secure key-value store abstraction.
// The delivery transport reads the device credential and backend endpoint
// from a Store at delivery time, so provisioning or rotating them takes
// effect on the next attempt without restarting the relay.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Well-known keys.
const (
	KeyDeviceCredential = "device_credential"
	KeyEndpoint         = "endpoint"
)

// ErrNotFound is returned when a key is absent or empty.
var ErrNotFound = errors.New("secret not found")

// Store reads secrets by key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// MemoryStore is an in-process Store, used in tests and when the relay is
// provisioned through environment variables.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a MemoryStore seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	m := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Get returns the value for key or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// Delete removes key.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
}

// FileStore reads secrets from a YAML (or JSON) file on every Get. The file
// is expected to be readable only by the relay user.
//
//	device_credential: eyJhbGciOi...
//	endpoint: https://ingest.example.com
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore over path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get loads the file and returns the value for key. A missing file is
// reported as ErrNotFound, so an unprovisioned relay classifies deliveries
// as "not configured" rather than failing.
func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(f.path), yaml.Parser()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (no secrets file)", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to read secrets file: %w", err)
	}

	v := strings.TrimSpace(k.String(key))
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}
