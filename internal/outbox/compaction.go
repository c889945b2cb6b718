// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/logging"
)

// Compactor handles periodic cleanup of the outbox. It purges abandoned
// items older than AbandonedRetention and triggers BadgerDB garbage
// collection. Live items are never touched.
type Compactor struct {
	outbox *BadgerOutbox
	config Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	lastRun    time.Time
	lastPurged int64
}

// CompactorStats contains compaction statistics.
type CompactorStats struct {
	LastRun    time.Time
	LastPurged int64
	IsRunning  bool
}

// NewCompactor creates a new compaction manager.
func NewCompactor(outbox *BadgerOutbox) *Compactor {
	return &Compactor{
		outbox: outbox,
		config: outbox.Config(),
	}
}

// Start begins the background compaction loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.config.CompactInterval).Msg("Outbox compactor started")
	return nil
}

// Stop gracefully stops the compaction loop.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Outbox compactor stopped")
}

// IsRunning returns whether the compactor is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CompactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.compact(time.Now())
		}
	}
}

// compact purges expired abandoned items and runs garbage collection.
func (c *Compactor) compact(now time.Time) {
	start := time.Now()

	purged, err := c.purgeAbandoned(now.Add(-c.config.AbandonedRetention))
	if err != nil {
		logging.Error().Err(err).Msg("Outbox compaction failed to purge abandoned items")
	}

	if err := c.outbox.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Outbox compaction GC error")
	}

	finished := time.Now()
	c.mu.Lock()
	c.lastRun = finished
	c.lastPurged = purged
	c.mu.Unlock()

	c.outbox.mu.Lock()
	c.outbox.lastCompaction = finished
	c.outbox.mu.Unlock()

	duration := time.Since(start)
	RecordCompaction(duration.Seconds(), purged)

	if purged > 0 {
		logging.Info().
			Int64("purged", purged).
			Dur("duration", duration).
			Msg("Outbox compaction purged abandoned items")
	}
}

// purgeAbandoned deletes abandoned items abandoned before cutoff.
func (c *Compactor) purgeAbandoned(cutoff time.Time) (int64, error) {
	if err := c.outbox.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := c.outbox.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Collect keys to delete (can't delete while iterating)
		var keysToDelete [][]byte
		prefix := []byte(prefixAbandoned)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			entry := it.Item()
			var item Item
			if err := entry.Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				continue
			}
			if item.AbandonedAt != nil && item.AbandonedAt.Before(cutoff) {
				keysToDelete = append(keysToDelete, entry.KeyCopy(nil))
			}
		}

		for _, key := range keysToDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// RunNow triggers an immediate compaction run.
func (c *Compactor) RunNow() {
	c.compact(time.Now())
}

// GetStats returns compaction statistics.
func (c *Compactor) GetStats() CompactorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompactorStats{
		LastRun:    c.lastRun,
		LastPurged: c.lastPurged,
		IsRunning:  c.running,
	}
}
