// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package metrics provides Prometheus metrics for both momoflow binaries.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the server (and by the relay when its metrics listener
is enabled):

	curl http://localhost:8080/metrics

# Server Metrics

  - api_requests_total, api_request_duration_seconds, api_active_requests
  - api_rate_limit_hits_total{endpoint}
  - ingest_requests_total{outcome}, ingest_duration_seconds
  - extraction_attempts_total{provider,result}, extraction_duration_seconds{provider}
  - extraction_outcomes_total{status}, reconciler_records_total
  - duckdb_query_duration_seconds{operation,table}, duckdb_query_errors_total

# Relay Metrics

  - scheduler_cycles_total, scheduler_cycle_duration_seconds
  - delivery_outcomes_total{outcome}
  - capture_events_total{decision}
  - relay_backend_reachable
  - outbox_* (registered by internal/outbox)

# Shared

  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name,from,to}
  - app_info{version,go_version,role}

Example alert:

	- alert: RelayBacklogGrowing
	  expr: outbox_pending_items > 500
	  for: 30m
*/
package metrics
