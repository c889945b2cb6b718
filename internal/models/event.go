// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package models

import "time"

// CapturedEvent is a notification as received from the platform message
// receiver. It is transient: the relay either drops it at the filter or
// turns it into an outbox item.
type CapturedEvent struct {
	// Sender is the originating address or short code (e.g. "MoMo").
	Sender string `json:"sender"`

	// Body is the verbatim message text.
	Body string `json:"body"`

	// OccurredAt is when the platform received the message.
	OccurredAt time.Time `json:"occurredAt"`

	// OriginSlot is the SIM slot the message arrived on, when known.
	OriginSlot *int `json:"originSlot,omitempty"`
}

// IngestRequest is the JSON body of POST /api/v1/ingest.
type IngestRequest struct {
	Sender     string `json:"sender" validate:"required,notblank,max=64"`
	Body       string `json:"body" validate:"required,max=4096"`
	ReceivedAt string `json:"receivedAt" validate:"required,timestamp"`
	OriginSlot *int   `json:"originSlot,omitempty" validate:"omitempty,min=0,max=7"`
}

// IngestResponse is the flat JSON response of POST /api/v1/ingest.
//
// Example accepted response:
//
//	{"ok": true, "id": "7f6c...", "duplicate": false, "parseStatus": "parsed", "skipped": false}
//
// Example skipped response:
//
//	{"ok": true, "duplicate": false, "skipped": true, "reason": "no_pattern_match"}
type IngestResponse struct {
	OK          bool        `json:"ok"`
	ID          string      `json:"id,omitempty"`
	Duplicate   bool        `json:"duplicate"`
	ParseStatus ParseStatus `json:"parseStatus,omitempty"`
	Skipped     bool        `json:"skipped"`
	Reason      string      `json:"reason,omitempty"`
}
