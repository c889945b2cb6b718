// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

/*
Package models defines data structures shared by the relay and the backend.

The relay and the backend are separate binaries but exchange the same wire
shapes, so both sides import this package rather than defining their own.

Key Components:

  - CapturedEvent: a notification as handed over by the platform receiver
  - IngestRequest / IngestResponse: the JSON contract of POST /api/v1/ingest
  - IngestedRecord: the durable backend row, one per unique fingerprint
  - ExtractedFields: best-effort structured fields produced by extraction
  - Device: a registered relay device and its current token id

Model Categories:

1. Wire Models:
  - IngestRequest: sender, body, receivedAt (RFC 3339), originSlot
  - IngestResponse: flat {ok, id, duplicate, parseStatus, skipped, reason}

2. Storage Models:
  - IngestedRecord: raw text is immutable after creation; only the parse
    fields change, exactly once, when extraction finishes
  - Device: registry row checked on every ingest

3. Query Models:
  - RecordFilter: operator listing filter (status, device, paging)
  - StatusCounts: record totals per parse status

Thread Safety:

All types are plain values. None of them carry locks; callers that share a
value across goroutines must synchronize access themselves.
*/
package models
