// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package outbox provides the relay's durable delivery queue using BadgerDB.
//
// Every notification that passes the content filter is written to the
// outbox before any network I/O happens. Items survive process crashes,
// power loss and long offline periods, and are removed only once the
// backend acknowledges them.
//
// # Architecture
//
//	CapturedEvent → Enqueue (fingerprint, dedup, fsync)
//	                   ↓
//	Scheduler cycle → DueItems → Claim (durable lease) → Deliver
//	                                                ↓
//	                  RecordSuccess | RecordFailure | Abandon
//
// # Key Layout
//
//   - pending:<id>       live item (JSON)
//   - hash:<fingerprint> id of the live item with that fingerprint
//   - abandoned:<id>     terminal item kept for observability
//
// The hash index is written and removed in the same transaction as the
// pending key, so a fingerprint is unique among live items. Racing enqueues
// of the same fingerprint are resolved by Badger's transaction conflict
// detection: the loser retries, sees the index, and reports DuplicateIgnored.
//
// # Components
//
//   - BadgerOutbox: the queue itself
//   - Compactor: background purge of old abandoned items and value-log GC
//   - RecoverInFlight: startup pass that clears leases left by a crash
//
// # Usage
//
//	cfg := outbox.DefaultConfig()
//	cfg.Path = "/data/outbox"
//	ob, err := outbox.Open(&cfg)
//	if err != nil {
//	    return err
//	}
//	defer ob.Close()
//
//	result, item, err := ob.Enqueue(ctx, event)
//
// # Thread Safety
//
// All BadgerOutbox methods are safe for concurrent use. The InFlight mark is
// a lease stored inside the item and updated transactionally, so only one
// worker can hold a given item at a time.
package outbox
