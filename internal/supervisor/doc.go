// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package supervisor runs the long-lived services of both binaries under a
suture v4 supervisor tree.

# Layout

Backend (cmd/server):

	RootSupervisor ("momoflow-server")
	├── storage-layer      (empty; DuckDB has no background loop)
	├── worker-layer
	│   └── pending-reconciler
	└── api-layer
	    └── ingest-api (HTTPServerService)

Relay (cmd/relay):

	RootSupervisor ("momoflow-relay")
	├── storage-layer
	│   └── outbox-compactor (StartStopService)
	├── worker-layer
	│   ├── delivery-scheduler (StartStopService)
	│   ├── connectivity-monitor
	│   └── capture-stdin (RunService, optional)
	└── api-layer
	    ├── capture-intake (HTTPServerService, optional)
	    └── relay-metrics (HTTPServerService, optional)

Each layer counts failures independently. A service that fails more than
FailureThreshold times within the decay window is paused for
FailureBackoff before the next restart; its siblings keep running.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    Name:            "momoflow-server",
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddWorkerService(reconciler)
	tree.AddAPIService(services.NewHTTPServerService("ingest-api", srv, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Supervisor events (starts, failures, backoff) are logged through
sutureslog into the zerolog pipeline.
*/
package supervisor
