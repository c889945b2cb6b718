// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/models"
)

// DeviceStore is the registry persistence used by Registrar.
type DeviceStore interface {
	DeviceLookup
	CreateDevice(ctx context.Context, d *models.Device) error
	UpdateDeviceToken(ctx context.Context, id, tokenID string) error
}

// Registrar registers devices and issues or rotates their tokens.
type Registrar struct {
	tokens *TokenManager
	store  DeviceStore
}

// NewRegistrar creates a registrar.
func NewRegistrar(tokens *TokenManager, store DeviceStore) *Registrar {
	return &Registrar{tokens: tokens, store: store}
}

// Register creates an enabled device and returns its only copy of the
// signed token.
func (r *Registrar) Register(ctx context.Context, name string) (*models.DeviceCredential, error) {
	id := uuid.New().String()
	issued, err := r.tokens.Issue(id)
	if err != nil {
		return nil, err
	}

	device := &models.Device{ID: id, Name: name, TokenID: issued.TokenID, Enabled: true}
	if err := r.store.CreateDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	logging.Info().Str("device_id", id).Msg("Device registered")
	return &models.DeviceCredential{Device: *device, Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// Rotate issues a new token for an existing device. The previous token id
// stops being accepted as soon as the registry row is updated.
func (r *Registrar) Rotate(ctx context.Context, id string) (*models.DeviceCredential, error) {
	if _, err := r.store.GetDevice(ctx, id); err != nil {
		return nil, err
	}
	issued, err := r.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	if err := r.store.UpdateDeviceToken(ctx, id, issued.TokenID); err != nil {
		return nil, fmt.Errorf("failed to rotate device token: %w", err)
	}

	device, err := r.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("device_id", id).Msg("Device token rotated")
	return &models.DeviceCredential{Device: *device, Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}
