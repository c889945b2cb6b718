// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package api provides the backend HTTP surface using the chi router.

Endpoints:

	POST  /api/v1/ingest              relay delivery (device bearer token)
	GET   /api/v1/health/live         liveness, no storage access
	GET   /api/v1/health/ready        readiness, pings DuckDB
	GET   /metrics                    Prometheus exposition
	GET   /api/v1/stats               record counts by parse status (admin)
	GET   /api/v1/records             filtered record list (admin)
	GET   /api/v1/records/{id}        one record (admin)
	POST  /api/v1/devices             register a device, returns its token (admin)
	GET   /api/v1/devices             list devices (admin)
	PATCH /api/v1/devices/{id}        enable or disable a device (admin)
	POST  /api/v1/devices/{id}/rotate issue a new token, revoking the old (admin)

The ingestion endpoint answers with the flat models.IngestResponse for both
success and failure, so relays classify responses by status code and read
the reason from one shape. Every other endpoint uses the APIResponse
envelope written by ResponseWriter.

Admin endpoints require Authorization: Bearer <operator token>, checked
against the configured bcrypt hash. Without a hash they answer 403.
*/
package api
