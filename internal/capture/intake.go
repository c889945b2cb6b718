// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/momoflow/internal/filter"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
	"github.com/tomtom215/momoflow/internal/outbox"
	"github.com/tomtom215/momoflow/internal/validation"
)

// Decision is what Intake did with an event.
type Decision string

const (
	Enqueued  Decision = "enqueued"
	Duplicate Decision = "duplicate"
	Filtered  Decision = "filtered"

	// Invalid events pass the filter but break the ingest request limits
	// (body length, sender length, origin slot). The backend would reject
	// them as terminal, so they are dropped before queuing.
	Invalid Decision = "invalid"
)

// Enqueuer persists accepted events.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev models.CapturedEvent) (outbox.EnqueueResult, *outbox.Item, error)
}

// Triggerer requests an opportunistic delivery cycle.
type Triggerer interface {
	Trigger()
}

// Intake connects a source to the outbox.
type Intake struct {
	filter  *filter.Filter
	queue   Enqueuer
	trigger Triggerer
}

// NewIntake creates an intake. trigger may be nil.
func NewIntake(f *filter.Filter, queue Enqueuer, trigger Triggerer) *Intake {
	return &Intake{filter: f, queue: queue, trigger: trigger}
}

// Handle filters and enqueues one event. Filtered events are dropped
// silently.
func (in *Intake) Handle(ctx context.Context, ev models.CapturedEvent) (Decision, error) {
	d := in.filter.Decide(ev.Sender, ev.Body)
	if !d.Accepted {
		metrics.RecordCapture(string(Filtered))
		logging.Debug().
			Str("reason", d.Reason).
			Int("body_len", len(ev.Body)).
			Msg("Capture: event filtered")
		return Filtered, nil
	}
	if verr := validation.ValidateCapturedEvent(ev); verr != nil {
		metrics.RecordCapture(string(Invalid))
		logging.Warn().
			Str("error", verr.Error()).
			Int("body_len", len(ev.Body)).
			Msg("Capture: event breaks ingest limits, dropped")
		return Invalid, nil
	}

	result, item, err := in.queue.Enqueue(ctx, ev)
	if err != nil {
		metrics.RecordCapture("error")
		return "", fmt.Errorf("enqueue captured event: %w", err)
	}

	if result == outbox.DuplicateIgnored {
		metrics.RecordCapture(string(Duplicate))
		logging.Debug().Str("item_id", item.ID).Msg("Capture: duplicate event ignored")
		return Duplicate, nil
	}

	metrics.RecordCapture(string(Enqueued))
	logging.Info().
		Str("item_id", item.ID).
		Str("content_hash", item.ContentHash).
		Msg("Capture: event enqueued")

	if in.trigger != nil {
		in.trigger.Trigger()
	}
	return Enqueued, nil
}

// Run drains src until it is exhausted or ctx is done. Malformed events
// and per-event enqueue failures are logged and skipped. Returns nil on
// io.EOF and ctx.Err() on cancellation.
func (in *Intake) Run(ctx context.Context, src Source) error {
	for {
		ev, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrMalformed):
			metrics.RecordCapture("error")
			logging.Warn().Err(err).Msg("Capture: skipping malformed event")
			continue
		default:
			return err
		}

		if _, err := in.Handle(ctx, ev); err != nil {
			logging.Error().Err(err).Msg("Capture: failed to persist event")
		}
	}
}
