// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/momoflow/internal/connectivity"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/middleware"
	"github.com/tomtom215/momoflow/internal/outbox"
)

const statusTimeout = 2 * time.Second

type outboxStats interface {
	Stats(ctx context.Context) (outbox.Stats, error)
}

type backendStatus interface {
	Status() connectivity.Status
}

type relayStatus struct {
	Outbox  *outbox.Stats       `json:"outbox,omitempty"`
	Backend connectivity.Status `json:"backend"`
	Error   string              `json:"error,omitempty"`
}

// newStatusRouter serves /metrics and GET /status on the relay's local
// metrics listener.
func newStatusRouter(ob outboxStats, mon backendStatus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
		defer cancel()

		resp := relayStatus{Backend: mon.Status()}
		status := http.StatusOK
		stats, err := ob.Stats(ctx)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to read outbox stats")
			resp.Error = "outbox unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Outbox = &stats
		}
		writeStatus(w, status, resp)
	})
	return r
}

// newCaptureRouter serves POST /capture for a local notification listener.
func newCaptureRouter(capture http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Method(http.MethodPost, "/capture", capture)
	return r
}

func writeStatus(w http.ResponseWriter, status int, v relayStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode relay status")
	}
}
