// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/logging"
)

// RecoveryResult contains the results of a startup recovery pass.
type RecoveryResult struct {
	// TotalPending is the number of live items found.
	TotalPending int

	// LeasesCleared is the number of InFlight marks left by a previous
	// process that were removed. Those items become due again without an
	// attempt being counted.
	LeasesCleared int

	// Exhausted is the number of items already at MaxAttempts, which
	// happens when the limit is lowered between runs. They are abandoned
	// because DueItems would never return them again.
	Exhausted int

	// Duration is how long the recovery took.
	Duration time.Duration
}

// RecoverInFlight clears every lease in the outbox and abandons items that
// have no attempts left under the current MaxAttempts. BadgerDB holds an
// exclusive directory lock, so at startup no other process can own a
// lease; any lease found belongs to a delivery interrupted by a crash or
// kill. Recovery is idempotent.
func (o *BadgerOutbox) RecoverInFlight(ctx context.Context) (*RecoveryResult, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &RecoveryResult{}

	err := o.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		var leased, exhausted []*Item
		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			result.TotalPending++

			var item Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				continue
			}
			switch {
			case item.AttemptCount >= o.config.MaxAttempts:
				exhausted = append(exhausted, &item)
			case item.LeaseHolder != "" || !item.LeaseExpiry.IsZero():
				leased = append(leased, &item)
			}
		}

		for _, item := range exhausted {
			reason := fmt.Sprintf("max attempts exceeded: %d attempts, limit %d", item.AttemptCount, o.config.MaxAttempts)
			if err := moveToAbandoned(txn, item, reason); err != nil {
				return err
			}
			result.Exhausted++
			result.TotalPending--
		}

		for _, item := range leased {
			item.LeaseExpiry = time.Time{}
			item.LeaseHolder = ""
			if err := putItem(txn, []byte(prefixPending+item.ID), item); err != nil {
				return err
			}
			result.LeasesCleared++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recover in-flight items: %w", err)
	}

	result.Duration = time.Since(start)
	RecordRecoveredLeases(int64(result.LeasesCleared))
	if result.Exhausted > 0 {
		o.totalAbandoned.Add(int64(result.Exhausted))
		for i := 0; i < result.Exhausted; i++ {
			RecordAbandoned()
		}
		logging.Warn().
			Int("abandoned", result.Exhausted).
			Int("max_attempts", o.config.MaxAttempts).
			Msg("Outbox recovery abandoned items with no attempts left")
	}

	if result.LeasesCleared > 0 {
		logging.Info().
			Int("pending", result.TotalPending).
			Int("leases_cleared", result.LeasesCleared).
			Dur("duration", result.Duration).
			Msg("Outbox recovery cleared stale leases")
	} else {
		logging.Info().Int("pending", result.TotalPending).Msg("Outbox recovery: no stale leases")
	}
	return result, nil
}
