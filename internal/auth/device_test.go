// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/momoflow/internal/database"
	"github.com/tomtom215/momoflow/internal/models"
)

// memoryDevices is an in-memory DeviceStore.
type memoryDevices struct {
	mu      sync.Mutex
	devices map[string]models.Device
	failGet error
}

func newMemoryDevices() *memoryDevices {
	return &memoryDevices{devices: make(map[string]models.Device)}
}

func (m *memoryDevices) GetDevice(_ context.Context, id string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, database.ErrNotFound)
	}
	return &d, nil
}

func (m *memoryDevices) CreateDevice(_ context.Context, d *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.ID]; ok {
		return database.ErrAlreadyExists
	}
	m.devices[d.ID] = *d
	return nil
}

func (m *memoryDevices) UpdateDeviceToken(_ context.Context, id, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return database.ErrNotFound
	}
	d.TokenID = tokenID
	m.devices[id] = d
	return nil
}

func (m *memoryDevices) setEnabled(id string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.devices[id]
	d.Enabled = enabled
	m.devices[id] = d
}

func TestDeviceAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tokens := newTestTokenManager(t, 0)
	store := newMemoryDevices()
	registrar := NewRegistrar(tokens, store)
	authn := NewDeviceAuthenticator(tokens, store)

	active, err := registrar.Register(ctx, "active")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	disabled, _ := registrar.Register(ctx, "disabled")
	store.setEnabled(disabled.Device.ID, false)

	rotated, _ := registrar.Register(ctx, "rotated")
	if _, err := registrar.Rotate(ctx, rotated.Device.ID); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	orphan, _ := tokens.Issue("never-registered")

	tests := []struct {
		name       string
		credential string
		want       error
	}{
		{"active", active.Token, nil},
		{"empty", "", ErrUnknownDevice},
		{"garbage", "abc.def.ghi", ErrUnknownDevice},
		{"unregistered subject", orphan.Token, ErrUnknownDevice},
		{"disabled", disabled.Token, ErrDeviceDisabled},
		{"rotated away", rotated.Token, ErrTokenRevoked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, err := authn.Authenticate(ctx, tt.credential)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.want)
			}
			if tt.want == nil && device.ID != active.Device.ID {
				t.Errorf("device = %+v", device)
			}
		})
	}
}

func TestDeviceAuthenticateLookupError(t *testing.T) {
	t.Parallel()

	tokens := newTestTokenManager(t, 0)
	store := newMemoryDevices()
	cred, err := NewRegistrar(tokens, store).Register(context.Background(), "phone")
	if err != nil {
		t.Fatal(err)
	}
	store.failGet = errors.New("connection reset")

	_, err = NewDeviceAuthenticator(tokens, store).Authenticate(context.Background(), cred.Token)
	if err == nil || errors.Is(err, ErrUnknownDevice) || errors.Is(err, ErrDeviceDisabled) {
		t.Errorf("lookup failure should surface as an internal error, got %v", err)
	}
}

func TestRegistrarRotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tokens := newTestTokenManager(t, 0)
	store := newMemoryDevices()
	r := NewRegistrar(tokens, store)

	first, err := r.Register(ctx, "phone")
	if err != nil {
		t.Fatal(err)
	}
	if !first.Device.Enabled || first.Device.Name != "phone" {
		t.Errorf("registered device = %+v", first.Device)
	}

	second, err := r.Rotate(ctx, first.Device.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.Token == first.Token || second.Device.TokenID == first.Device.TokenID {
		t.Error("rotation should issue a new token id")
	}

	if _, err := r.Rotate(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Rotate(missing) error = %v, want ErrNotFound", err)
	}
}
