// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package capture is the relay's boundary with the platform message
// receiver. A Source yields captured notifications; Intake applies the
// content filter, persists accepted events to the outbox and nudges the
// scheduler. Intake never performs network I/O, so capture succeeds while
// the device is offline.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/models"
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 64 * 1024

// ErrMalformed wraps a line that could not be decoded. Sources return it
// for one event and remain usable.
var ErrMalformed = errors.New("malformed captured event")

// Source yields captured events. Next returns io.EOF when the source is
// exhausted.
type Source interface {
	Next(ctx context.Context) (models.CapturedEvent, error)
}

// JSONLinesSource reads one CapturedEvent JSON object per line:
//
//	{"sender":"MoMo","body":"You have received GHS 20.00 ...","occurredAt":"2026-03-01T10:30:00.123Z","originSlot":0}
type JSONLinesSource struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	line    int
}

// NewJSONLinesSource creates a source over r.
func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &JSONLinesSource{scanner: sc}
}

// Next returns the next event. Blank lines are skipped.
func (s *JSONLinesSource) Next(ctx context.Context) (models.CapturedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return models.CapturedEvent{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return models.CapturedEvent{}, fmt.Errorf("read captured events: %w", err)
			}
			return models.CapturedEvent{}, io.EOF
		}
		s.line++
		raw := s.scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var ev models.CapturedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return models.CapturedEvent{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, s.line, err)
		}
		return ev, nil
	}
}

// ChannelSource adapts a channel of events, for receivers that push.
type ChannelSource struct {
	events <-chan models.CapturedEvent
}

// NewChannelSource creates a source over ch. Closing ch ends the source.
func NewChannelSource(ch <-chan models.CapturedEvent) *ChannelSource {
	return &ChannelSource{events: ch}
}

// Next blocks until an event arrives, ch is closed or ctx is done.
func (s *ChannelSource) Next(ctx context.Context) (models.CapturedEvent, error) {
	select {
	case <-ctx.Done():
		return models.CapturedEvent{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return models.CapturedEvent{}, io.EOF
		}
		return ev, nil
	}
}
