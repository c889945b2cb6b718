// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package models

import "time"

// Device is a registered relay. TokenID is the jti of the only device token
// currently accepted for this device; rotating the token replaces it.
type Device struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	TokenID    string     `json:"-"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// RegisterDeviceRequest is the body of POST /api/v1/devices.
type RegisterDeviceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// UpdateDeviceRequest is the body of PATCH /api/v1/devices/{id}.
type UpdateDeviceRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// DeviceCredential is returned once, when a device token is issued.
type DeviceCredential struct {
	Device    Device    `json:"device"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
