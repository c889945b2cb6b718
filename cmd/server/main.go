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

	"github.com/tomtom215/momoflow/internal/api"
	"github.com/tomtom215/momoflow/internal/auth"
	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/database"
	"github.com/tomtom215/momoflow/internal/extract"
	"github.com/tomtom215/momoflow/internal/filter"
	"github.com/tomtom215/momoflow/internal/ingest"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/middleware"
	"github.com/tomtom215/momoflow/internal/supervisor"
	"github.com/tomtom215/momoflow/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	latencySamples   = 1000
	slowRequestLimit = 2 * time.Second
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-token" {
		os.Exit(hashToken(os.Args[2:]))
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.ValidateServer(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid backend configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
		Role:      "server",
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Backend stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Msg("Starting momoflow backend")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		return err
	}
	admin, err := auth.NewAdminAuthenticator(cfg.Security.AdminTokenHash)
	if err != nil {
		return err
	}
	if !admin.Enabled() {
		logging.Warn().Msg("ADMIN_TOKEN_HASH is not set; the operator API answers 403 until it is configured")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	f, err := filter.New(filter.Rules{
		Senders:       cfg.Filter.Senders,
		ExtraPatterns: cfg.Filter.ExtraPatterns,
	})
	if err != nil {
		return err
	}

	chain := extract.Build(cfg.Extraction)
	logging.Info().Strs("providers", chain.Providers()).Msg("Extraction chain configured")

	service := ingest.NewService(db, auth.NewDeviceAuthenticator(tokens, db), f, chain, cfg.Ingest)
	reconciler := ingest.NewReconciler(service, db, cfg.Ingest)

	latency := middleware.NewLatencyMonitor(latencySamples, slowRequestLimit)
	handler := api.NewHandler(api.Dependencies{
		Ingest:              service,
		Records:             db,
		Devices:             db,
		Issuer:              auth.NewRegistrar(tokens, db),
		DB:                  db,
		Latency:             latency,
		ExtractionProviders: chain.Providers(),
	})
	router := api.NewRouter(handler, api.NewChiMiddlewareFromSecurity(&cfg.Security), admin, api.RouterOptions{
		MaxBodyBytes: cfg.Ingest.MaxBodyBytes,
		Latency:      latency,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		Name:            "momoflow-server",
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}
	tree.AddWorkerService(reconciler)
	tree.AddAPIService(services.NewHTTPServerService("ingest-api", server, cfg.Server.ShutdownTimeout))

	metrics.AppInfo.WithLabelValues(version, runtime.Version(), "server").Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	return serveTree(ctx, tree)
}

// serveTree runs tree until ctx is canceled and reports services that did
// not stop in time.
func serveTree(ctx context.Context, tree *supervisor.SupervisorTree) error {
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

// hashToken prints the bcrypt hash to configure as ADMIN_TOKEN_HASH. The
// token is read from the first argument or, without one, from stdin.
func hashToken(args []string) int {
	var token string
	if len(args) > 0 {
		token = args[0]
	} else if _, err := fmt.Fscanln(os.Stdin, &token); err != nil {
		fmt.Fprintln(os.Stderr, "usage: momoflow-server hash-token <token>")
		return 2
	}

	hash, err := auth.HashAdminToken(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
