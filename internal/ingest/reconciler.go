// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
)

// StaleLister lists records still pending after the grace period.
type StaleLister interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.IngestedRecord, error)
}

// Reconciler re-runs extraction for records left pending, typically by a
// process that stopped between storing a record and writing its parse
// result. A record ingested less than Grace ago is left to its request.
type Reconciler struct {
	service  *Service
	store    StaleLister
	interval time.Duration
	grace    time.Duration
	batch    int
}

// NewReconciler creates a reconciler using cfg's reconcile settings.
func NewReconciler(service *Service, store StaleLister, cfg config.IngestConfig) *Reconciler {
	r := &Reconciler{
		service:  service,
		store:    store,
		interval: cfg.ReconcileInterval,
		grace:    cfg.ReconcileGrace,
		batch:    cfg.ReconcileBatch,
	}
	if r.interval <= 0 {
		r.interval = 5 * time.Minute
	}
	// A pending record younger than the extraction timeout may still be
	// owned by its request.
	if r.grace < service.timeout {
		r.grace = service.timeout
	}
	if r.batch <= 0 {
		r.batch = 20
	}
	return r
}

// Serve runs a pass immediately and then every interval until ctx ends.
// It implements suture.Service.
func (r *Reconciler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("Reconcile pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) String() string { return "pending-reconciler" }

// RunOnce extracts one batch of stale pending records and returns how many
// reached a final status.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.service.now().UTC().Add(-r.grace)
	stale, err := r.store.ListStalePending(ctx, cutoff, r.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale records: %w", err)
	}

	completed := 0
	for i := range stale {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		rec := &stale[i]
		extractCtx, cancel := context.WithTimeout(ctx, r.service.timeout)
		status := r.service.Extract(extractCtx, rec)
		cancel()
		if status != models.ParsePending {
			completed++
			metrics.ReconcilerRecords.Inc()
		}
	}

	if len(stale) > 0 {
		logging.Info().
			Int("stale", len(stale)).
			Int("completed", completed).
			Msg("Reconciled pending records")
	}
	return completed, nil
}
