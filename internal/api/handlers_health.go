// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds the database ping of the readiness probe.
const readinessTimeout = 2 * time.Second

// HealthLive handles liveness probes. It never touches storage, so relays
// can use it to detect that the backend is reachable.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 200 only when the record store answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	dbConnected := h.db != nil && h.db.Ping(ctx) == nil
	data := map[string]interface{}{
		"database_connected": dbConnected,
		"uptime":             time.Since(h.startTime).Seconds(),
	}

	rw := NewResponseWriter(w, r)
	if !dbConnected {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service is not ready", data)
		return
	}
	rw.Success(data)
}
