// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generates when absent", "", false},
		{"preserves client id", "relay-abc-123", true},
		{"replaces oversized id", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var fromCtx, correlation string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromCtx = logging.RequestIDFromContext(r.Context())
				correlation = logging.CorrelationIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got != fromCtx {
				t.Errorf("header %q != context %q", got, fromCtx)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("id = %q, want %q", got, tt.incoming)
			}
			if !tt.keep {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("generated id %q is not a UUID", got)
				}
			}
			if correlation == "" {
				t.Error("correlation id missing")
			}
		})
	}
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/things/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/things/"+id, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter delta = %v, want 3", got)
	}
}

func TestLatencyMonitorStats(t *testing.T) {
	t.Parallel()

	lm := NewLatencyMonitor(100, 0)
	for i := int64(1); i <= 10; i++ {
		lm.Record(RequestSample{Route: "/api/v1/ingest", Method: http.MethodPost, DurationMS: i * 10, StatusCode: http.StatusOK})
	}
	lm.Record(RequestSample{Route: "/api/v1/stats", Method: http.MethodGet, DurationMS: 5, StatusCode: http.StatusServiceUnavailable})

	stats := lm.Stats()
	if len(stats) != 2 {
		t.Fatalf("stats = %+v, want two routes", stats)
	}
	ingest := stats[0]
	if ingest.Route != "POST /api/v1/ingest" || ingest.RequestCount != 10 {
		t.Errorf("busiest = %+v", ingest)
	}
	if ingest.P50MS != 50 || ingest.MaxMS != 100 || ingest.AvgMS != 55 {
		t.Errorf("percentiles = %+v", ingest)
	}
	if stats[1].ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", stats[1].ErrorCount)
	}
}

func TestLatencyMonitorWindow(t *testing.T) {
	t.Parallel()

	lm := NewLatencyMonitor(3, 0)
	for i := int64(1); i <= 5; i++ {
		lm.Record(RequestSample{Route: "/r", Method: http.MethodGet, DurationMS: i})
	}
	stats := lm.Stats()
	if len(stats) != 1 || stats[0].RequestCount != 3 || stats[0].P50MS != 4 {
		t.Errorf("stats = %+v, want the three newest samples", stats)
	}
}

func TestLatencyMonitorMiddleware(t *testing.T) {
	t.Parallel()

	lm := NewLatencyMonitor(10, time.Nanosecond)
	r := chi.NewRouter()
	r.Use(lm.Middleware)
	r.Get("/api/v1/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/records/42", nil))

	stats := lm.Stats()
	if len(stats) != 1 || stats[0].Route != "GET /api/v1/records/{id}" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestPercentileEmpty(t *testing.T) {
	t.Parallel()
	if percentile(nil, 0.5) != 0 {
		t.Error("percentile of nothing should be 0")
	}
}
