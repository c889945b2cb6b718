// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Command server runs the momoflow backend: the ingestion endpoint relays
deliver to, the DuckDB record store, the extraction chain, the pending
reconciler and the operator API.

# Startup

 1. Configuration: Koanf v2 layering of defaults, config.yaml and environment
 2. Logging: zerolog, JSON or console
 3. Database: DuckDB with versioned migrations
 4. Authentication: HS256 device tokens and the bcrypt operator token hash
 5. Filter and extraction chain (primary, fallback, rules)
 6. Supervisor tree: pending reconciler and the HTTP server

# Configuration

	HTTP_PORT=8080
	DUCKDB_PATH=/data/momoflow.duckdb
	DEVICE_TOKEN_SECRET=<32+ chars>
	ADMIN_TOKEN_HASH=<output of hash-token>
	EXTRACTION_PRIMARY_BASE_URL=https://api.openai.com/v1
	EXTRACTION_PRIMARY_API_KEY=<key>
	EXTRACTION_PRIMARY_MODEL=gpt-4o-mini
	LOG_LEVEL=info
	LOG_FORMAT=json

# Operator token

The operator API compares bearer tokens against a bcrypt hash. Produce one
with:

	momoflow-server hash-token "$(openssl rand -hex 24)"

# Signals

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
in-flight requests for up to HTTP_SHUTDOWN_TIMEOUT; an extraction that
was already running finishes on its own detached context or is picked up
by the reconciler after the next start.
*/
package main
