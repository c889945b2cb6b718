// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newBufferedSlog(buf *bytes.Buffer) *slog.Logger {
	return slog.New(&SlogHandler{logger: zerolog.New(buf)})
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newBufferedSlog(&buf)

	logger.Warn("service restarted",
		slog.String("service", "scheduler"),
		slog.Int("failures", 2),
		slog.Bool("backoff", true),
		slog.Duration("delay", 15*time.Second),
	)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"message":"service restarted"`,
		`"service":"scheduler"`,
		`"failures":2`,
		`"backoff":true`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestSlogHandlerAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newBufferedSlog(&buf).With("tree", "relay").WithGroup("event")

	logger.Error("terminated", slog.String("name", "delivery"), slog.Group("cause", slog.String("kind", "panic")))

	out := buf.String()
	for _, want := range []string{`"tree":"relay"`, `"event.name":"delivery"`, `"event.cause.kind":"panic"`, `"level":"error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	h := &SlogHandler{logger: zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel)}
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("info should be disabled for a warn-level logger")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("error should be enabled for a warn-level logger")
	}
}

func TestSlogLevelMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
