// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for outbox operations
var (
	outboxEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_enqueued_total",
		Help: "Total number of items accepted into the outbox",
	})

	outboxDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_duplicates_total",
		Help: "Total number of enqueues ignored because a live item had the same fingerprint",
	})

	outboxEnqueueConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_enqueue_conflicts_total",
		Help: "Total number of enqueue transactions retried after a write conflict",
	})

	outboxEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_enqueue_failures_total",
		Help: "Total number of failed enqueue operations",
	})

	outboxEnqueueLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_enqueue_latency_seconds",
		Help:    "Outbox enqueue latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	outboxDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_delivered_total",
		Help: "Total number of items removed after confirmed delivery",
	})

	outboxFailedAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_failed_attempts_total",
		Help: "Total number of retryable delivery failures recorded",
	})

	outboxAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_abandoned_total",
		Help: "Total number of items moved to the abandoned state",
	})

	outboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending_items",
		Help: "Current number of live outbox items, including in-flight",
	})

	outboxInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_in_flight_items",
		Help: "Current number of items holding an active delivery lease",
	})

	outboxAbandoned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_abandoned_items",
		Help: "Current number of abandoned items retained for inspection",
	})

	outboxRecoveredLeases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_recovered_leases_total",
		Help: "Total number of stale leases cleared on startup",
	})

	outboxCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_compactions_total",
		Help: "Total number of outbox compaction runs",
	})

	outboxPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_purged_total",
		Help: "Total number of abandoned items purged by compaction",
	})

	outboxCompactionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_compaction_latency_seconds",
		Help:    "Outbox compaction latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	outboxGCLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_gc_latency_seconds",
		Help:    "BadgerDB value log GC latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

// RecordEnqueue increments the enqueued counter.
func RecordEnqueue() {
	outboxEnqueuedTotal.Inc()
}

// RecordDuplicate increments the duplicate counter.
func RecordDuplicate() {
	outboxDuplicatesTotal.Inc()
}

// RecordEnqueueConflict increments the conflict retry counter.
func RecordEnqueueConflict() {
	outboxEnqueueConflicts.Inc()
}

// RecordEnqueueFailure increments the enqueue failure counter.
func RecordEnqueueFailure() {
	outboxEnqueueFailures.Inc()
}

// RecordEnqueueLatency records an enqueue duration.
func RecordEnqueueLatency(seconds float64) {
	outboxEnqueueLatency.Observe(seconds)
}

// RecordDelivered increments the delivered counter.
func RecordDelivered() {
	outboxDeliveredTotal.Inc()
}

// RecordFailedAttempt increments the failed attempt counter.
func RecordFailedAttempt() {
	outboxFailedAttemptsTotal.Inc()
}

// RecordAbandoned increments the abandoned counter.
func RecordAbandoned() {
	outboxAbandonedTotal.Inc()
}

// UpdateDepthGauges sets the queue depth gauges.
func UpdateDepthGauges(pending, inFlight, abandoned int64) {
	outboxPending.Set(float64(pending))
	outboxInFlight.Set(float64(inFlight))
	outboxAbandoned.Set(float64(abandoned))
}

// RecordRecoveredLeases adds to the recovered lease counter.
func RecordRecoveredLeases(count int64) {
	outboxRecoveredLeases.Add(float64(count))
}

// RecordCompaction records a compaction run.
func RecordCompaction(seconds float64, purged int64) {
	outboxCompactionsTotal.Inc()
	outboxCompactionLatency.Observe(seconds)
	if purged > 0 {
		outboxPurgedTotal.Add(float64(purged))
	}
}

// RecordGCLatency records a value log GC duration.
func RecordGCLatency(seconds float64) {
	outboxGCLatency.Observe(seconds)
}
