// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/momoflow/internal/auth"
	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
)

// ChiMiddlewareConfig holds CORS and rate limit settings.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// Ingest rate limit, keyed by client IP. A relay behind carrier NAT
	// shares its IP with others, so the default is generous.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns secure defaults: no CORS origins and
// 100 ingest requests per minute per IP.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddleware builds the CORS and rate limit middleware.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware from config; nil uses defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	opts := cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: config.CORSAllowedMethods,
		AllowedHeaders: config.CORSAllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         config.CORSMaxAge,
	}
	// go-chi/cors treats an empty origin list as "*".
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	corsHandler := cors.Handler(opts)

	return &ChiMiddleware{config: config, cors: corsHandler}
}

// NewChiMiddlewareFromSecurity maps the security config section.
func NewChiMiddlewareFromSecurity(sec *config.SecurityConfig) *ChiMiddleware {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = sec.CORSOrigins
	if sec.RateLimitReqs > 0 {
		cfg.RateLimitRequests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		cfg.RateLimitWindow = sec.RateLimitWindow
	}
	cfg.RateLimitDisabled = sec.RateLimitDisabled
	return NewChiMiddleware(cfg)
}

// CORS returns the CORS middleware for the operator console.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitConfig defines rate limit parameters for a route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var (
	// RateLimitOperator applies to the admin API.
	RateLimitOperator = RateLimitConfig{Requests: 60, Window: time.Minute}

	// RateLimitHealth is permissive for probes and scrapers.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
)

// RateLimitIngest limits the ingestion endpoint. Rejections use the flat
// ingest response with status 429, which relays treat as retryable.
func (m *ChiMiddleware) RateLimitIngest() func(http.Handler) http.Handler {
	limit := RateLimitConfig{Requests: m.config.RateLimitRequests, Window: m.config.RateLimitWindow}
	return m.rateLimit(limit, func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRateLimitHits.WithLabelValues("ingest").Inc()
		writeJSON(w, http.StatusTooManyRequests, models.IngestResponse{OK: false, Reason: "rate limited"})
	})
}

// RateLimitCustom limits a route group with the envelope error response.
func (m *ChiMiddleware) RateLimitCustom(name string, limit RateLimitConfig) func(http.Handler) http.Handler {
	return m.rateLimit(limit, func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRateLimitHits.WithLabelValues(name).Inc()
		NewResponseWriter(w, r).TooManyRequests("Rate limit exceeded")
	})
}

func (m *ChiMiddleware) rateLimit(limit RateLimitConfig, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		limit.Requests,
		limit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(onLimit),
	)
}

// APISecurityHeaders adds headers for JSON endpoints.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly requires the operator bearer token. Without a configured hash
// the operator API is closed.
func AdminOnly(admin *auth.AdminAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if admin == nil || !admin.Enabled() {
				NewResponseWriter(w, r).Forbidden("Operator API is disabled")
				return
			}
			if err := admin.Check(r.Header.Get("Authorization")); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="momoflow"`)
				NewResponseWriter(w, r).Unauthorized(err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
