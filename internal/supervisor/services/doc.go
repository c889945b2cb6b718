// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package services adapts momoflow components to suture.Service.

	HTTPServerService   ListenAndServe/Shutdown (ingest API, capture intake, relay metrics)
	StartStopService    Start/Stop loops (delivery scheduler, outbox compactor)
	RunService          finite runs (stdin capture), not restarted after a clean return

Components that already implement Serve(ctx) error, such as the
connectivity monitor and the pending reconciler, are added to the tree
directly.
*/
package services
