// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/auth"
	"github.com/tomtom215/momoflow/internal/ingest"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/models"
)

// IdempotencyKeyHeader carries the relay's content fingerprint. The
// service recomputes the fingerprint, so the header is informational.
const IdempotencyKeyHeader = "Idempotency-Key"

// Ingest handles POST /api/v1/ingest. Every response, including errors,
// is a flat models.IngestResponse.
//
//	200 accepted, duplicate or skipped
//	400 malformed or invalid request
//	401 unknown device credential
//	403 device disabled or token revoked
//	413 body over the configured limit
//	503 storage unavailable, retry later
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeIngest(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeIngest(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	var body models.IngestRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		writeIngest(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	credential, _ := auth.BearerToken(r.Header.Get("Authorization"))
	res, err := h.ingest.Ingest(r.Context(), ingest.Request{
		Credential: credential,
		Sender:     body.Sender,
		Body:       body.Body,
		ReceivedAt: body.ReceivedAt,
		OriginSlot: body.OriginSlot,
	})
	if err != nil {
		h.ingestError(w, r, err)
		return
	}

	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		logging.Ctx(r.Context()).Debug().
			Str("idempotency_key", key).
			Str("outcome", res.Outcome.String()).
			Msg("Ingest request resolved")
	}

	resp := models.IngestResponse{OK: true}
	switch res.Outcome {
	case ingest.Skipped:
		resp.Skipped = true
		resp.Reason = res.Reason
	case ingest.Duplicate:
		resp.Duplicate = true
		fallthrough
	default:
		resp.ID = res.ID
		resp.ParseStatus = res.ParseStatus
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ingestError(w http.ResponseWriter, r *http.Request, err error) {
	if re, ok := ingest.AsReject(err); ok {
		status := http.StatusBadRequest
		switch re.Kind {
		case ingest.Unauthorized:
			status = http.StatusUnauthorized
			w.Header().Set("WWW-Authenticate", `Bearer realm="momoflow"`)
		case ingest.Forbidden:
			status = http.StatusForbidden
		}
		logging.Ctx(r.Context()).Info().
			Str("kind", re.Kind.String()).
			Str("reason", re.Reason).
			Msg("Ingest request rejected")
		writeIngest(w, status, re.Reason)
		return
	}

	logging.Ctx(r.Context()).Error().Err(err).Msg("Ingest failed")
	w.Header().Set("Retry-After", "30")
	writeIngest(w, http.StatusServiceUnavailable, "temporarily unavailable")
}

func writeIngest(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, models.IngestResponse{OK: false, Reason: reason})
}
