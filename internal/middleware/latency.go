// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/momoflow/internal/logging"
)

// RequestSample is one observed request.
type RequestSample struct {
	Route      string
	Method     string
	DurationMS int64
	StatusCode int
	Timestamp  time.Time
}

// RouteStats aggregates the samples of one method and route.
type RouteStats struct {
	Route        string  `json:"route"`
	RequestCount int64   `json:"requestCount"`
	ErrorCount   int64   `json:"errorCount"`
	AvgMS        float64 `json:"avgMs"`
	P50MS        int64   `json:"p50Ms"`
	P95MS        int64   `json:"p95Ms"`
	P99MS        int64   `json:"p99Ms"`
	MaxMS        int64   `json:"maxMs"`
}

// LatencyMonitor keeps the most recent requests in a bounded window and
// logs those slower than a threshold. Ingestion latency is dominated by
// synchronous extraction, which is what operators watch it for.
type LatencyMonitor struct {
	mu         sync.RWMutex
	samples    []RequestSample
	maxSamples int
	slow       time.Duration
}

// NewLatencyMonitor keeps up to maxSamples requests and warns on requests
// slower than slow. A zero slow disables the warning.
func NewLatencyMonitor(maxSamples int, slow time.Duration) *LatencyMonitor {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &LatencyMonitor{
		samples:    make([]RequestSample, 0, maxSamples),
		maxSamples: maxSamples,
		slow:       slow,
	}
}

// Record adds a sample, dropping the oldest once the window is full.
func (lm *LatencyMonitor) Record(s RequestSample) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if len(lm.samples) == lm.maxSamples {
		copy(lm.samples, lm.samples[1:])
		lm.samples = lm.samples[:len(lm.samples)-1]
	}
	lm.samples = append(lm.samples, s)
}

// Stats returns per-route statistics over the window, busiest first.
func (lm *LatencyMonitor) Stats() []RouteStats {
	lm.mu.RLock()
	byRoute := make(map[string][]RequestSample)
	for _, s := range lm.samples {
		key := s.Method + " " + s.Route
		byRoute[key] = append(byRoute[key], s)
	}
	lm.mu.RUnlock()

	stats := make([]RouteStats, 0, len(byRoute))
	for route, samples := range byRoute {
		durations := make([]int64, len(samples))
		var sum, errs int64
		for i, s := range samples {
			durations[i] = s.DurationMS
			sum += s.DurationMS
			if s.StatusCode >= http.StatusInternalServerError {
				errs++
			}
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		stats = append(stats, RouteStats{
			Route:        route,
			RequestCount: int64(len(durations)),
			ErrorCount:   errs,
			AvgMS:        float64(sum) / float64(len(durations)),
			P50MS:        percentile(durations, 0.50),
			P95MS:        percentile(durations, 0.95),
			P99MS:        percentile(durations, 0.99),
			MaxMS:        durations[len(durations)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].RequestCount != stats[j].RequestCount {
			return stats[i].RequestCount > stats[j].RequestCount
		}
		return stats[i].Route < stats[j].Route
	})
	return stats
}

// Middleware records every request served by next.
func (lm *LatencyMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		sample := RequestSample{
			Route:      routePattern(r),
			Method:     r.Method,
			DurationMS: elapsed.Milliseconds(),
			StatusCode: status(ww),
			Timestamp:  start,
		}
		lm.Record(sample)

		if lm.slow > 0 && elapsed > lm.slow {
			logging.Ctx(r.Context()).Warn().
				Str("method", sample.Method).
				Str("route", sample.Route).
				Int("status", sample.StatusCode).
				Int64("duration_ms", sample.DurationMS).
				Msg("Slow request detected")
		}
	})
}

// percentile returns the p-th value of sorted.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
