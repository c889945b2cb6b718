// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/momoflow/internal/secrets"
)

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) Trigger() { c.n.Add(1) }

func TestCheckTriggersOnReconnect(t *testing.T) {
	t.Parallel()

	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LivenessPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	trig := &countingTrigger{}
	m := NewMonitor(secrets.NewMemoryStore(map[string]string{secrets.KeyEndpoint: srv.URL}), trig, DefaultConfig())
	ctx := context.Background()

	if m.Check(ctx) {
		t.Fatal("unhealthy backend reported online")
	}
	if st := m.Status(); !st.Known || st.Online || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}
	if trig.n.Load() != 0 {
		t.Error("offline probe must not trigger")
	}

	healthy.Store(true)
	if !m.Check(ctx) {
		t.Fatal("healthy backend reported offline")
	}
	if trig.n.Load() != 1 {
		t.Errorf("triggers = %d, want 1 on reconnect", trig.n.Load())
	}

	m.Check(ctx)
	if trig.n.Load() != 1 {
		t.Errorf("steady online state should not re-trigger, got %d", trig.n.Load())
	}

	healthy.Store(false)
	m.Check(ctx)
	healthy.Store(true)
	m.Check(ctx)
	if trig.n.Load() != 2 {
		t.Errorf("triggers = %d, want 2 after second reconnect", trig.n.Load())
	}
}

func TestCheckWithoutEndpoint(t *testing.T) {
	t.Parallel()

	trig := &countingTrigger{}
	m := NewMonitor(secrets.NewMemoryStore(nil), trig, DefaultConfig())
	if m.Check(context.Background()) {
		t.Error("monitor without endpoint reported online")
	}
	if trig.n.Load() != 0 {
		t.Error("unexpected trigger")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	trig := &countingTrigger{}
	m := NewMonitor(secrets.NewMemoryStore(map[string]string{secrets.KeyEndpoint: srv.URL}), trig, Config{Interval: 10 * time.Millisecond, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for trig.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if trig.n.Load() != 1 {
		t.Errorf("triggers = %d, want 1", trig.n.Load())
	}
}
