// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Command relay runs the on-device side of momoflow. It filters captured
notifications, persists accepted ones to a BadgerDB outbox and delivers
them to the backend with retries.

Captured events arrive as JSON lines on stdin (RELAY_SOURCE=stdin) or as
POST /capture on a loopback listener (RELAY_CAPTURE_LISTEN):

	{"sender":"MoMo","body":"You have received 5000 RWF from John Doe","occurredAt":"2026-05-04T09:30:15Z"}

The device credential and backend endpoint live in RELAY_SECRETS_FILE and
are re-read on every delivery:

	device_credential: eyJhbGciOi...
	endpoint: https://ingest.example.com

RELAY_METRICS_LISTEN serves /metrics and a /status snapshot of the outbox
and the last connectivity probe.
*/
package main
