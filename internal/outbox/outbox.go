// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/momoflow/internal/fingerprint"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/models"
)

// Sentinel errors.
var (
	ErrOutboxClosed     = fmt.Errorf("outbox is closed")
	ErrEmptyItemID      = fmt.Errorf("item ID cannot be empty")
	ErrItemNotFound     = fmt.Errorf("outbox item not found")
	ErrMissingTimestamp = fmt.Errorf("event timestamp is required")
)

// maxConflictRetries bounds how often Enqueue re-runs a transaction that
// lost a write conflict to a concurrent enqueue.
const maxConflictRetries = 3

// EnqueueResult reports what Enqueue did with an event.
type EnqueueResult int

const (
	// Accepted means a new live item was written.
	Accepted EnqueueResult = iota
	// DuplicateIgnored means a live item with the same fingerprint exists.
	DuplicateIgnored
)

func (r EnqueueResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case DuplicateIgnored:
		return "duplicate_ignored"
	default:
		return "unknown"
	}
}

// Item is a durable queue entry.
type Item struct {
	// ID is the unique identifier for this item.
	ID string `json:"id"`

	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
	OriginSlot *int      `json:"origin_slot,omitempty"`

	// ContentHash is the fingerprint over sender, body and occurredAt.
	ContentHash string `json:"content_hash"`

	// AttemptCount is the number of completed delivery attempts.
	AttemptCount int `json:"attempt_count"`

	// NextAttemptAt is the earliest time the scheduler may deliver the item.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastAttemptAt is the time of the last completed attempt.
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`

	// LastError is the reason of the last failed attempt.
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// LeaseExpiry is when the current InFlight claim expires.
	// Zero value means the item is not in flight.
	LeaseExpiry time.Time `json:"lease_expiry,omitempty"`

	// LeaseHolder identifies the worker holding the claim.
	LeaseHolder string `json:"lease_holder,omitempty"`

	// AbandonedAt is set once the item reaches the terminal abandoned state.
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`

	// AbandonReason is why the item was abandoned.
	AbandonReason string `json:"abandon_reason,omitempty"`
}

// InFlight reports whether the item holds an unexpired lease at now.
func (i *Item) InFlight(now time.Time) bool {
	return !i.LeaseExpiry.IsZero() && now.Before(i.LeaseExpiry)
}

// Stats is an outbox snapshot. Pending includes in-flight items.
type Stats struct {
	Pending   int64 `json:"pending"`
	InFlight  int64 `json:"in_flight"`
	Abandoned int64 `json:"abandoned"`

	// Counters since the process started.
	TotalEnqueued   int64 `json:"total_enqueued"`
	TotalDuplicates int64 `json:"total_duplicates"`
	TotalDelivered  int64 `json:"total_delivered"`
	TotalFailures   int64 `json:"total_failures"`
	TotalAbandoned  int64 `json:"total_abandoned"`

	LastCompaction time.Time `json:"last_compaction,omitempty"`
}

// BadgerOutbox implements the durable queue on BadgerDB.
type BadgerOutbox struct {
	db     *badger.DB
	config Config

	totalEnqueued   atomic.Int64
	totalDuplicates atomic.Int64
	totalDelivered  atomic.Int64
	totalFailures   atomic.Int64
	totalAbandoned  atomic.Int64

	lastCompaction time.Time
	mu             sync.RWMutex
	closed         bool
}

// Prefix keys for different item states
const (
	prefixPending   = "pending:"
	prefixAbandoned = "abandoned:"
	prefixHash      = "hash:"
)

// Open creates a BadgerOutbox with the given configuration.
// The BadgerDB database is opened (or created) at the configured path.
func Open(cfg *Config) (*BadgerOutbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox config: %w", err)
	}

	ob, err := open(cfg)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Outbox opened")
	return ob, nil
}

// OpenForTesting creates a BadgerOutbox without configuration validation,
// for unit tests that need values below the production minimums.
// WARNING: Do not use in production code.
func OpenForTesting(cfg *Config) (*BadgerOutbox, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = 30 * time.Second
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = 0.5
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	return open(cfg)
}

func open(cfg *Config) (*BadgerOutbox, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	return &BadgerOutbox{
		db:             db,
		config:         *cfg,
		lastCompaction: time.Now(),
	}, nil
}

func (o *BadgerOutbox) checkOpen() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	return nil
}

// Enqueue persists ev unless a live item with the same fingerprint exists.
// The returned item is the new item for Accepted and the existing one for
// DuplicateIgnored.
func (o *BadgerOutbox) Enqueue(ctx context.Context, ev models.CapturedEvent) (EnqueueResult, *Item, error) {
	if err := o.checkOpen(); err != nil {
		return Accepted, nil, err
	}
	if ev.OccurredAt.IsZero() {
		return Accepted, nil, ErrMissingTimestamp
	}

	start := time.Now()
	defer func() {
		RecordEnqueueLatency(time.Since(start).Seconds())
	}()

	now := time.Now().UTC()
	item := &Item{
		ID:            uuid.New().String(),
		Sender:        ev.Sender,
		Body:          ev.Body,
		OccurredAt:    ev.OccurredAt.UTC(),
		OriginSlot:    ev.OriginSlot,
		ContentHash:   fingerprint.Compute(ev.Sender, ev.Body, ev.OccurredAt),
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	data, err := json.Marshal(item)
	if err != nil {
		return Accepted, nil, fmt.Errorf("marshal item: %w", err)
	}

	var existing *Item
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Accepted, nil, err
		}

		err = o.db.Update(func(txn *badger.Txn) error {
			existing = nil
			hashKey := []byte(prefixHash + item.ContentHash)

			idx, err := txn.Get(hashKey)
			switch {
			case err == nil:
				var liveID string
				if err := idx.Value(func(val []byte) error {
					liveID = string(val)
					return nil
				}); err != nil {
					return fmt.Errorf("read hash index: %w", err)
				}
				live, err := getItem(txn, prefixPending+liveID)
				if err == nil {
					existing = live
					return nil
				}
				if !errors.Is(err, ErrItemNotFound) {
					return err
				}
				// Index without a live item; overwrite it below.
				logging.Warn().
					Str("content_hash", item.ContentHash).
					Str("stale_id", liveID).
					Msg("Outbox: replacing stale hash index")
			case !errors.Is(err, badger.ErrKeyNotFound):
				return fmt.Errorf("get hash index: %w", err)
			}

			if err := txn.Set([]byte(prefixPending+item.ID), data); err != nil {
				return fmt.Errorf("set item: %w", err)
			}
			if err := txn.Set(hashKey, []byte(item.ID)); err != nil {
				return fmt.Errorf("set hash index: %w", err)
			}
			return nil
		})

		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			RecordEnqueueConflict()
			continue
		}
		if err != nil {
			RecordEnqueueFailure()
			return Accepted, nil, fmt.Errorf("enqueue: %w", err)
		}
		break
	}

	if existing != nil {
		o.totalDuplicates.Add(1)
		RecordDuplicate()
		logging.Debug().
			Str("item_id", existing.ID).
			Str("content_hash", existing.ContentHash).
			Msg("Outbox: duplicate ignored")
		return DuplicateIgnored, existing, nil
	}

	o.totalEnqueued.Add(1)
	RecordEnqueue()
	logging.Debug().
		Str("item_id", item.ID).
		Str("content_hash", item.ContentHash).
		Int("body_len", len(item.Body)).
		Msg("Outbox: item enqueued")
	return Accepted, item, nil
}

// Get returns the live item with the given ID.
func (o *BadgerOutbox) Get(ctx context.Context, id string) (*Item, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrEmptyItemID
	}

	var item *Item
	err := o.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = getItem(txn, prefixPending+id)
		return err
	})
	return item, err
}

// DueItems returns up to limit live items whose NextAttemptAt is not after
// now, that have attempts left and are not in flight. Items are ordered by
// ascending NextAttemptAt, then CreatedAt.
func (o *BadgerOutbox) DueItems(ctx context.Context, now time.Time, limit int) ([]*Item, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	var due []*Item
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var item Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Outbox: skipping unreadable item")
				continue
			}

			if item.NextAttemptAt.After(now) ||
				item.AttemptCount >= o.config.MaxAttempts ||
				item.InFlight(now) {
				continue
			}
			due = append(due, &item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan due items: %w", err)
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Claim marks the item InFlight for holder by writing a lease.
//
// Returns:
//   - (true, nil): the claim is held; the same holder may re-claim to extend it
//   - (false, nil): another holder has an active lease (not an error)
//   - (false, ErrItemNotFound): the item is no longer live
func (o *BadgerOutbox) Claim(ctx context.Context, id, holder string) (bool, error) {
	if err := o.checkOpen(); err != nil {
		return false, err
	}
	if id == "" {
		return false, ErrEmptyItemID
	}

	now := time.Now()
	leaseExpiry := now.Add(o.config.LeaseDuration)

	var claimed bool
	err := o.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixPending + id)
		item, err := getItem(txn, string(key))
		if err != nil {
			return err
		}

		if item.InFlight(now) && item.LeaseHolder != holder {
			logging.Trace().
				Str("item_id", id).
				Str("lease_holder", item.LeaseHolder).
				Time("lease_expiry", item.LeaseExpiry).
				Msg("Outbox: item has active lease, skipping")
			claimed = false
			return nil
		}

		item.LeaseExpiry = leaseExpiry
		item.LeaseHolder = holder
		if err := putItem(txn, key, item); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// Release clears the lease without consuming an attempt. Used when a
// delivery is interrupted by shutdown.
func (o *BadgerOutbox) Release(ctx context.Context, id string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}

	return o.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixPending + id)
		item, err := getItem(txn, string(key))
		if errors.Is(err, ErrItemNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		item.LeaseExpiry = time.Time{}
		item.LeaseHolder = ""
		return putItem(txn, key, item)
	})
}

// RecordSuccess removes a delivered item and its hash index.
func (o *BadgerOutbox) RecordSuccess(ctx context.Context, id string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyItemID
	}

	err := o.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixPending + id)
		item, err := getItem(txn, string(key))
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return deleteHashIndex(txn, item)
	})
	if err != nil {
		return err
	}

	o.totalDelivered.Add(1)
	RecordDelivered()
	logging.Debug().Str("item_id", id).Msg("Outbox: item delivered")
	return nil
}

// RecordFailure counts a failed attempt, stores the reason and reschedules
// the item at nextAttemptAt. The lease is cleared.
func (o *BadgerOutbox) RecordFailure(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyItemID
	}

	err := o.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixPending + id)
		item, err := getItem(txn, string(key))
		if err != nil {
			return err
		}
		item.AttemptCount++
		item.LastAttemptAt = time.Now().UTC()
		item.LastError = errMsg
		item.NextAttemptAt = nextAttemptAt.UTC()
		item.LeaseExpiry = time.Time{}
		item.LeaseHolder = ""
		return putItem(txn, key, item)
	})
	if err != nil {
		return err
	}

	o.totalFailures.Add(1)
	RecordFailedAttempt()
	return nil
}

// Abandon moves the item to the terminal abandoned state. The attempt that
// led to abandonment is counted and reason becomes LastError. The hash
// index is removed, so the same event may be captured again later.
func (o *BadgerOutbox) Abandon(ctx context.Context, id, reason string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyItemID
	}

	err := o.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixPending + id)
		item, err := getItem(txn, string(key))
		if err != nil {
			return err
		}

		item.AttemptCount++
		item.LastAttemptAt = time.Now().UTC()
		return moveToAbandoned(txn, item, reason)
	})
	if err != nil {
		return err
	}

	o.totalAbandoned.Add(1)
	RecordAbandoned()
	logging.Warn().
		Str("item_id", id).
		Str("reason", reason).
		Msg("Outbox: item abandoned")
	return nil
}

// Abandoned returns up to limit abandoned items, newest first.
func (o *BadgerOutbox) Abandoned(ctx context.Context, limit int) ([]*Item, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	var items []*Item
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixAbandoned)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var item Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				continue
			}
			items = append(items, &item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].AbandonedAt.After(*items[j].AbandonedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Stats returns a snapshot of queue depth and lifetime counters, and
// publishes the depth gauges.
func (o *BadgerOutbox) Stats(ctx context.Context) (Stats, error) {
	if err := o.checkOpen(); err != nil {
		return Stats{}, err
	}

	now := time.Now()
	stats := Stats{
		TotalEnqueued:   o.totalEnqueued.Load(),
		TotalDuplicates: o.totalDuplicates.Load(),
		TotalDelivered:  o.totalDelivered.Load(),
		TotalFailures:   o.totalFailures.Load(),
		TotalAbandoned:  o.totalAbandoned.Load(),
	}

	o.mu.RLock()
	stats.LastCompaction = o.lastCompaction
	o.mu.RUnlock()

	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		pending := []byte(prefixPending)
		for it.Seek(pending); it.ValidForPrefix(pending); it.Next() {
			stats.Pending++
			var item Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err == nil && item.InFlight(now) {
				stats.InFlight++
			}
		}

		abandoned := []byte(prefixAbandoned)
		for it.Seek(abandoned); it.ValidForPrefix(abandoned); it.Next() {
			stats.Abandoned++
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}

	UpdateDepthGauges(stats.Pending, stats.InFlight, stats.Abandoned)
	return stats, nil
}

// Config returns the outbox configuration.
func (o *BadgerOutbox) Config() Config {
	return o.config
}

// Close gracefully shuts down the outbox with the configured timeout.
func (o *BadgerOutbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	timeout := o.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	o.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- o.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Outbox closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// RunGC runs BadgerDB value log garbage collection until nothing is left
// to rewrite.
func (o *BadgerOutbox) RunGC() error {
	if err := o.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		RecordGCLatency(time.Since(start).Seconds())
	}()

	for {
		err := o.db.RunValueLogGC(o.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("value log GC: %w", err)
		}
	}
}

func getItem(txn *badger.Txn, key string) (*Item, error) {
	entry, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	var item Item
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &item)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &item, nil
}

func putItem(txn *badger.Txn, key []byte, item *Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set item: %w", err)
	}
	return nil
}

// deleteHashIndex removes the fingerprint index if it still points at item.
// moveToAbandoned rewrites a pending item under the abandoned prefix and
// drops its hash index.
func moveToAbandoned(txn *badger.Txn, item *Item, reason string) error {
	now := time.Now().UTC()
	item.LastError = reason
	item.AbandonReason = reason
	item.AbandonedAt = &now
	item.LeaseExpiry = time.Time{}
	item.LeaseHolder = ""

	if err := putItem(txn, []byte(prefixAbandoned+item.ID), item); err != nil {
		return err
	}
	if err := txn.Delete([]byte(prefixPending + item.ID)); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return deleteHashIndex(txn, item)
}

func deleteHashIndex(txn *badger.Txn, item *Item) error {
	hashKey := []byte(prefixHash + item.ContentHash)
	idx, err := txn.Get(hashKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get hash index: %w", err)
	}

	var liveID string
	if err := idx.Value(func(val []byte) error {
		liveID = string(val)
		return nil
	}); err != nil {
		return fmt.Errorf("read hash index: %w", err)
	}
	if liveID != item.ID {
		return nil
	}
	if err := txn.Delete(hashKey); err != nil {
		return fmt.Errorf("delete hash index: %w", err)
	}
	return nil
}
