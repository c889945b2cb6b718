// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package connectivity watches backend reachability from the relay and
// triggers a delivery cycle when the backend comes back.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/secrets"
)

// LivenessPath is probed on the configured endpoint.
const LivenessPath = "/api/v1/health/live"

// Config holds monitor settings.
type Config struct {
	// Interval between probes.
	Interval time.Duration `koanf:"interval"`

	// Timeout bounds one probe.
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns the default monitor settings.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Triggerer is notified on an offline to online transition.
type Triggerer interface {
	Trigger()
}

// Monitor probes the backend liveness endpoint.
type Monitor struct {
	store   secrets.Store
	trigger Triggerer
	config  Config
	client  *http.Client

	mu      sync.Mutex
	online  bool
	known   bool
	lastErr string
	checked time.Time
}

// Status is a snapshot of the last probe.
type Status struct {
	Online    bool      `json:"online"`
	Known     bool      `json:"known"`
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewMonitor creates a monitor. The endpoint is read from store on every
// probe.
func NewMonitor(store secrets.Store, trigger Triggerer, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Monitor{
		store:   store,
		trigger: trigger,
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Serve probes until ctx is done. It implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// String returns the service name for supervisor logs.
func (m *Monitor) String() string {
	return "connectivity-monitor"
}

// Check runs one probe and returns whether the backend was reachable.
// An offline (or unknown) to online transition calls Trigger.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.probe(ctx)
	online := err == nil

	m.mu.Lock()
	wasOnline, wasKnown := m.online, m.known
	m.online = online
	m.known = true
	m.checked = time.Now()
	if err != nil {
		m.lastErr = err.Error()
	} else {
		m.lastErr = ""
	}
	m.mu.Unlock()

	metrics.SetBackendReachable(online)

	switch {
	case online && (!wasOnline || !wasKnown):
		logging.Info().Msg("Backend reachable, triggering delivery")
		if m.trigger != nil {
			m.trigger.Trigger()
		}
	case !online && (wasOnline || !wasKnown):
		logging.Warn().Err(err).Msg("Backend unreachable, deliveries will back off")
	}
	return online
}

// Status returns the last probe result.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Online: m.online, Known: m.known, LastError: m.lastErr, CheckedAt: m.checked}
}

func (m *Monitor) probe(ctx context.Context) error {
	endpoint, err := m.store.Get(ctx, secrets.KeyEndpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+LivenessPath, nil)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("liveness probe returned %s", resp.Status)
	}
	return nil
}
