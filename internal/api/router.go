// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/momoflow/internal/auth"
	"github.com/tomtom215/momoflow/internal/middleware"
)

// DefaultMaxBodyBytes caps ingest request bodies when no limit is set.
const DefaultMaxBodyBytes = 64 << 10

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	admin         *auth.AdminAuthenticator
	latency       *middleware.LatencyMonitor
	maxBodyBytes  int64
}

// RouterOptions configures NewRouter. Zero values use defaults.
type RouterOptions struct {
	MaxBodyBytes int64
	Latency      *middleware.LatencyMonitor
}

// NewRouter creates a router. A nil chiMW uses NewChiMiddleware(nil).
func NewRouter(handler *Handler, chiMW *ChiMiddleware, admin *auth.AdminAuthenticator, opts RouterOptions) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
		admin:         admin,
		latency:       opts.Latency,
		maxBodyBytes:  opts.MaxBodyBytes,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)
	if router.latency != nil {
		r.Use(router.latency.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom("health", RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Ingestion Endpoint
	// ========================
	// Device authentication happens inside the ingestion service, after
	// validation and filtering.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitIngest())
		r.Use(chimiddleware.RequestSize(router.maxBodyBytes))
		r.Post("/api/v1/ingest", router.handler.Ingest)
	})

	// ========================
	// Operator API
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom("operator", RateLimitOperator))
		r.Use(APISecurityHeaders())
		r.Use(AdminOnly(router.admin))
		r.Use(chimiddleware.RequestSize(router.maxBodyBytes))
		r.Use(chimiddleware.Compress(5))

		r.Get("/api/v1/stats", router.handler.Stats)

		r.Get("/api/v1/records", router.handler.Records)
		r.Get("/api/v1/records/{id}", router.handler.Record)

		r.Post("/api/v1/devices", router.handler.RegisterDevice)
		r.Get("/api/v1/devices", router.handler.Devices)
		r.Patch("/api/v1/devices/{id}", router.handler.UpdateDevice)
		r.Post("/api/v1/devices/{id}/rotate", router.handler.RotateDevice)
	})

	return r
}
