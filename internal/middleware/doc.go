// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package middleware provides the infrastructure HTTP middleware of the backend.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauges labeled by
    chi route pattern, so path parameters never become label values
  - LatencyMonitor: a sliding window of recent request durations per route,
    served to operators as percentiles, with slow-request logging

All middleware has the chi signature func(http.Handler) http.Handler.

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(latency.Middleware)

Request bodies and message text are never logged by this package.
*/
package middleware
