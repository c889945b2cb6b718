// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/database"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/models"
	"github.com/tomtom215/momoflow/internal/validation"
)

// RegisterDevice handles POST /api/v1/devices. The response carries the
// device token; it is not stored and cannot be retrieved again.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.RegisterDeviceRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	cred, err := h.issuer.Register(r.Context(), req.Name)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Created(cred)
}

// Devices handles GET /api/v1/devices.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(devices)
}

// UpdateDevice handles PATCH /api/v1/devices/{id}. Disabling a device
// makes its next delivery fail with 403.
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req models.UpdateDeviceRequest
	if !decodeBody(rw, r, &req) {
		return
	}

	err := h.devices.SetDeviceEnabled(r.Context(), id, *req.Enabled)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Device not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	device, err := h.devices.GetDevice(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("device_id", id).
		Bool("enabled", device.Enabled).
		Msg("Device updated")
	rw.Success(device)
}

// RotateDevice handles POST /api/v1/devices/{id}/rotate. The previous
// token stops working immediately.
func (h *Handler) RotateDevice(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cred, err := h.issuer.Rotate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Device not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(cred)
}

// decodeBody decodes and validates a JSON body, writing the 400 itself.
func decodeBody(rw *ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rw.BadRequest("Invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		rw.ValidationError(verr)
		return false
	}
	return true
}
