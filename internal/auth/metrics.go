// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeviceAuthAttempts counts device credential checks.
	// Labels:
	//   - outcome: "ok", "invalid_token", "unknown_device", "disabled", "revoked", "lookup_error"
	DeviceAuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_auth_attempts_total",
			Help: "Total number of device credential checks by outcome",
		},
		[]string{"outcome"},
	)

	// AdminAuthAttempts counts operator token checks.
	// Labels:
	//   - outcome: "ok", "missing", "invalid"
	AdminAuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_auth_attempts_total",
			Help: "Total number of operator token checks by outcome",
		},
		[]string{"outcome"},
	)
)

func recordDeviceAuth(outcome string) {
	DeviceAuthAttempts.WithLabelValues(outcome).Inc()
}

func recordAdminAuth(outcome string) {
	AdminAuthAttempts.WithLabelValues(outcome).Inc()
}
