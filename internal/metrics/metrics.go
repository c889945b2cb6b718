// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Ingestion Metrics
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Total number of ingestion requests by outcome",
		},
		[]string{"outcome"}, // "accepted", "duplicate", "skipped", "invalid", "unauthorized", "forbidden", "error"
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "End-to-end ingestion latency including extraction",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Extraction Metrics
	ExtractionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_attempts_total",
			Help: "Total number of extraction attempts by provider and result",
		},
		[]string{"provider", "result"}, // "success", "failure"
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Extraction latency per provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"provider"},
	)

	ExtractionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_outcomes_total",
			Help: "Final parse status written to records",
		},
		[]string{"status"}, // "parsed", "failed"
	)

	ReconcilerRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_records_total",
			Help: "Total number of stale pending records re-extracted",
		},
	)

	// Relay Metrics
	SchedulerCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Total number of scheduler cycles",
		},
	)

	SchedulerCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_cycle_duration_seconds",
			Help:    "Scheduler cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	DeliveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_outcomes_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"outcome"}, // "success", "retryable", "terminal", "released"
	)

	CaptureEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capture_events_total",
			Help: "Captured events by intake decision",
		},
		[]string{"decision"}, // "enqueued", "duplicate", "filtered", "error"
	)

	BackendReachable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_backend_reachable",
			Help: "Whether the last connectivity probe reached the backend (1) or not (0)",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version", "role"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngest records the outcome and latency of one ingestion request.
func RecordIngest(outcome string, duration time.Duration) {
	IngestRequestsTotal.WithLabelValues(outcome).Inc()
	IngestDuration.Observe(duration.Seconds())
}

// RecordExtractionAttempt records a single provider attempt.
func RecordExtractionAttempt(provider string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ExtractionAttempts.WithLabelValues(provider, result).Inc()
	ExtractionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordExtractionOutcome records the parse status written for a record.
func RecordExtractionOutcome(status string) {
	ExtractionOutcomes.WithLabelValues(status).Inc()
}

// RecordSchedulerCycle records a completed scheduler cycle.
func RecordSchedulerCycle(duration time.Duration) {
	SchedulerCycles.Inc()
	SchedulerCycleDuration.Observe(duration.Seconds())
}

// RecordDeliveryOutcome records a delivery attempt outcome.
func RecordDeliveryOutcome(outcome string) {
	DeliveryOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCapture records a capture intake decision.
func RecordCapture(decision string) {
	CaptureEvents.WithLabelValues(decision).Inc()
}

// SetBackendReachable updates the connectivity gauge.
func SetBackendReachable(online bool) {
	if online {
		BackendReachable.Set(1)
		return
	}
	BackendReachable.Set(0)
}
