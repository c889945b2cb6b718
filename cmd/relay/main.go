// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/momoflow/internal/capture"
	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/connectivity"
	"github.com/tomtom215/momoflow/internal/delivery"
	"github.com/tomtom215/momoflow/internal/filter"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/outbox"
	"github.com/tomtom215/momoflow/internal/scheduler"
	"github.com/tomtom215/momoflow/internal/secrets"
	"github.com/tomtom215/momoflow/internal/supervisor"
	"github.com/tomtom215/momoflow/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const listenerShutdown = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.ValidateRelay(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid relay configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
		Role:      "relay",
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Relay stopped with error")
	}
	logging.Info().Msg("Relay stopped gracefully")
}

func run(cfg *config.Config) error {
	rc := cfg.Relay
	logging.Info().
		Str("version", version).
		Str("outbox_path", rc.Outbox.Path).
		Str("secrets_file", rc.SecretsFile).
		Str("source", rc.Source).
		Msg("Starting momoflow relay")

	ob, err := outbox.Open(&rc.Outbox)
	if err != nil {
		return fmt.Errorf("failed to open outbox: %w", err)
	}
	defer func() {
		if err := ob.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing outbox")
		}
	}()

	// No other process can hold the Badger directory lock, so every
	// lease present now was left by a crash.
	recovery, err := ob.RecoverInFlight(context.Background())
	if err != nil {
		return fmt.Errorf("failed to recover outbox leases: %w", err)
	}
	logging.Info().
		Int("pending", recovery.TotalPending).
		Int("leases_cleared", recovery.LeasesCleared).
		Msg("Outbox recovered")

	store := secrets.NewFileStore(rc.SecretsFile)
	if _, err := os.Stat(rc.SecretsFile); err != nil {
		logging.Warn().Str("path", rc.SecretsFile).Msg("Secrets file not present yet; deliveries wait until it is provisioned")
	}

	f, err := filter.New(filter.Rules{
		Senders:       cfg.Filter.Senders,
		ExtraPatterns: cfg.Filter.ExtraPatterns,
	})
	if err != nil {
		return err
	}

	transport := delivery.NewHTTPTransport(store, rc.Delivery)
	sched := scheduler.New(ob, transport, rc.Scheduler)
	monitor := connectivity.NewMonitor(store, sched, rc.Connectivity)
	intake := capture.NewIntake(f, ob, sched)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		Name: "momoflow-relay",
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	tree.AddStorageService(services.NewStartStopService("outbox-compactor", outbox.NewCompactor(ob)))
	tree.AddWorkerService(services.NewStartStopService("delivery-scheduler", sched))
	tree.AddWorkerService(monitor)

	if rc.Source == "stdin" {
		src := capture.NewJSONLinesSource(os.Stdin)
		tree.AddWorkerService(services.NewRunService("capture-stdin", func(ctx context.Context) error {
			return intake.Run(ctx, src)
		}))
	}
	if rc.CaptureListen != "" {
		srv := &http.Server{
			Addr:              rc.CaptureListen,
			Handler:           newCaptureRouter(intake.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService("capture-intake", srv, listenerShutdown))
		logging.Info().Str("addr", rc.CaptureListen).Msg("Capture intake enabled")
	}
	if rc.MetricsListen != "" {
		srv := &http.Server{
			Addr:              rc.MetricsListen,
			Handler:           newStatusRouter(ob, monitor),
			ReadHeaderTimeout: 5 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService("relay-metrics", srv, listenerShutdown))
		logging.Info().Str("addr", rc.MetricsListen).Msg("Relay metrics enabled")
	}

	metrics.AppInfo.WithLabelValues(version, runtime.Version(), "relay").Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return treeErr
	}
	return nil
}
