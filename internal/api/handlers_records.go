// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/momoflow/internal/database"
	"github.com/tomtom215/momoflow/internal/fingerprint"
	"github.com/tomtom215/momoflow/internal/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Records handles GET /api/v1/records.
//
// Query parameters: status (pending, parsed, failed), device, sender,
// from and to (RFC 3339, bounding receivedAt as [from, to)), limit and
// offset.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	f := models.RecordFilter{
		Status:   models.ParseStatus(q.Get("status")),
		DeviceID: q.Get("device"),
		Sender:   q.Get("sender"),
	}
	if f.Status != "" && !f.Status.Valid() {
		rw.BadRequest("status must be one of: pending parsed failed")
		return
	}

	var err error
	if f.ReceivedFrom, err = timeParam(q.Get("from")); err != nil {
		rw.BadRequest("from must be an RFC 3339 timestamp")
		return
	}
	if f.ReceivedTo, err = timeParam(q.Get("to")); err != nil {
		rw.BadRequest("to must be an RFC 3339 timestamp")
		return
	}

	f.Limit = getIntParam(q.Get("limit"), defaultPageLimit)
	if f.Limit < 1 || f.Limit > maxPageLimit {
		f.Limit = defaultPageLimit
	}
	f.Offset = getIntParam(q.Get("offset"), 0)
	if f.Offset < 0 {
		f.Offset = 0
	}

	records, err := h.records.ListRecords(r.Context(), f)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.SuccessWithPagination(records, &PaginationMeta{
		Count:   len(records),
		Offset:  f.Offset,
		Limit:   f.Limit,
		HasMore: len(records) == f.Limit,
	})
}

// Record handles GET /api/v1/records/{id}.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rec, err := h.records.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Record not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(rec)
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	counts, err := h.records.CountByStatus(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	data := map[string]interface{}{
		"records":              counts,
		"extraction_providers": h.providers,
		"uptime":               time.Since(h.startTime).Seconds(),
	}
	if h.latency != nil {
		data["latency"] = h.latency.Stats()
	}
	rw.Success(data)
}

// getIntParam parses value, returning def when it is empty or malformed.
func getIntParam(value string, def int) int {
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func timeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := fingerprint.ParseTime(value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
