// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/momoflow/internal/database"
	"github.com/tomtom215/momoflow/internal/models"
)

var (
	// ErrUnknownDevice means the credential did not identify a registered
	// device. Maps to 401.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrDeviceDisabled means the device exists but was disabled by an
	// operator. Maps to 403.
	ErrDeviceDisabled = errors.New("device disabled")

	// ErrTokenRevoked means the token id is no longer the device's current
	// token. Maps to 403.
	ErrTokenRevoked = errors.New("device token revoked")
)

// DeviceLookup reads a device from the registry. It returns an error
// wrapping database.ErrNotFound for unknown ids.
type DeviceLookup interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
}

// DeviceAuthenticator resolves a device credential to a registered,
// enabled device.
type DeviceAuthenticator struct {
	tokens   *TokenManager
	registry DeviceLookup
}

// NewDeviceAuthenticator creates an authenticator over tokens and registry.
func NewDeviceAuthenticator(tokens *TokenManager, registry DeviceLookup) *DeviceAuthenticator {
	return &DeviceAuthenticator{tokens: tokens, registry: registry}
}

// Authenticate verifies credential and checks the registry. Errors are
// ErrUnknownDevice, ErrDeviceDisabled, ErrTokenRevoked, or a wrapped
// registry error when the lookup itself failed.
func (a *DeviceAuthenticator) Authenticate(ctx context.Context, credential string) (*models.Device, error) {
	if credential == "" {
		return nil, ErrUnknownDevice
	}
	claims, err := a.tokens.Verify(credential)
	if err != nil {
		recordDeviceAuth("invalid_token")
		return nil, fmt.Errorf("%w: %w", ErrUnknownDevice, err)
	}

	device, err := a.registry.GetDevice(ctx, claims.DeviceID())
	if errors.Is(err, database.ErrNotFound) {
		recordDeviceAuth("unknown_device")
		return nil, ErrUnknownDevice
	}
	if err != nil {
		recordDeviceAuth("lookup_error")
		return nil, fmt.Errorf("failed to look up device: %w", err)
	}

	switch {
	case !device.Enabled:
		recordDeviceAuth("disabled")
		return nil, ErrDeviceDisabled
	case device.TokenID != claims.ID:
		recordDeviceAuth("revoked")
		return nil, ErrTokenRevoked
	}
	recordDeviceAuth("ok")
	return device, nil
}
