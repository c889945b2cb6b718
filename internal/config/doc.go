// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package config provides configuration loading for the relay and the backend.

Both binaries load the same Config through Koanf v2. Each one reads only
the sections it uses and calls its role validator on top of Validate.

# Configuration Sources

Sources are layered, later ones winning:
  - Struct defaults (defaultConfig)
  - Optional YAML file: CONFIG_PATH, else config.yaml, else /etc/momoflow/config.yaml
  - Environment variables listed in envMappings; unmapped variables are ignored

Comma-separated environment values are split for slice settings
(CORS_ORIGINS, FILTER_SENDERS, FILTER_EXTRA_PATTERNS).

# Environment Variables

Backend:
  - HTTP_HOST, HTTP_PORT: listen address (default 0.0.0.0:8080)
  - DUCKDB_PATH: record store file (default /data/momoflow.duckdb)
  - DEVICE_TOKEN_SECRET: HS256 secret for device tokens (min 32 chars, required)
  - ADMIN_TOKEN_HASH: bcrypt hash of the operator token (empty disables the operator API)
  - INGEST_EXTRACTION_TIMEOUT: bound on synchronous extraction (default and maximum 20s)
  - EXTRACTION_PRIMARY_BASE_URL, EXTRACTION_PRIMARY_MODEL, EXTRACTION_PRIMARY_API_KEY
  - EXTRACTION_FALLBACK_BASE_URL, EXTRACTION_FALLBACK_MODEL, EXTRACTION_FALLBACK_API_KEY
  - EXTRACTION_RULES_FALLBACK: append the regex provider (default true)

Relay:
  - RELAY_OUTBOX_PATH: Badger directory (default /data/outbox)
  - RELAY_MAX_ATTEMPTS: delivery attempts before abandoning (default 5)
  - RELAY_INTERVAL, RELAY_BASE_DELAY: scheduler tick and backoff base (default 1m, 60s)
  - RELAY_DELIVERY_TIMEOUT: per-attempt wait for the backend (default 45s, must exceed 30s)
  - RELAY_SECRETS_FILE: file holding device_credential and endpoint
  - RELAY_SOURCE: stdin or none
  - RELAY_CAPTURE_LISTEN: loopback address of the capture HTTP intake

Shared:
  - FILTER_SENDERS, FILTER_EXTRA_PATTERNS
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
*/
package config
