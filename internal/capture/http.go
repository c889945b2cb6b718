// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package capture

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/models"
)

type captureResponse struct {
	Decision Decision `json:"decision"`
	Error    string   `json:"error,omitempty"`
}

// Handler accepts one CapturedEvent per POST. It is meant for a local
// bridge app on the same device and is bound to loopback by the relay.
//
//	curl -X POST localhost:8765/capture -d '{"sender":"MoMo","body":"...","occurredAt":"2026-03-01T10:30:00Z"}'
func (in *Intake) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeCaptureJSON(w, http.StatusMethodNotAllowed, captureResponse{Error: "method not allowed"})
			return
		}

		var ev models.CapturedEvent
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLineBytes))
		if err := dec.Decode(&ev); err != nil {
			writeCaptureJSON(w, http.StatusBadRequest, captureResponse{Error: "invalid event JSON"})
			return
		}

		decision, err := in.Handle(r.Context(), ev)
		if err != nil {
			writeCaptureJSON(w, http.StatusInternalServerError, captureResponse{Error: err.Error()})
			return
		}
		status := http.StatusOK
		switch decision {
		case Enqueued:
			status = http.StatusAccepted
		case Invalid:
			status = http.StatusUnprocessableEntity
		}
		writeCaptureJSON(w, status, captureResponse{Decision: decision})
	})
}

func writeCaptureJSON(w http.ResponseWriter, status int, v captureResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
