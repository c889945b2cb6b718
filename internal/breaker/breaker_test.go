// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = time.Hour
	return cfg
}

// TestBreakerOpensAfterFailures verifies the circuit opens after exceeding the failure threshold.
func TestBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	b := New[string]("test-opens", testConfig(), nil)
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("initial state = %v, want closed", b.State())
	}

	// 7 failures out of 10 requests is 70%.
	for i := 0; i < 10; i++ {
		_, _ = b.Execute(func() (string, error) {
			if i < 7 {
				return "", errors.New("simulated failure")
			}
			return "ok", nil
		})
	}

	// ReadyToTrip runs on each failure, so the tenth request was a success
	// and one more failure is needed to evaluate with 10+ requests.
	_, _ = b.Execute(func() (string, error) { return "", errors.New("final failure") })

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	_, err := b.Execute(func() (string, error) {
		called = true
		return "ok", nil
	})
	if !IsOpen(err) {
		t.Errorf("expected open-state rejection, got %v", err)
	}
	if called {
		t.Error("function ran while breaker was open")
	}
}

func TestBreakerStaysClosedBelowMinimum(t *testing.T) {
	t.Parallel()

	b := New[int]("test-minimum", testConfig(), nil)
	for i := 0; i < 9; i++ {
		_, _ = b.Execute(func() (int, error) { return 0, errors.New("fail") })
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed below minimum request count", b.State())
	}
}

func TestBreakerIsSuccessfulExcludesErrors(t *testing.T) {
	t.Parallel()

	notCounted := func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	b := New[int]("test-excluded", testConfig(), notCounted)

	for i := 0; i < 20; i++ {
		_, err := b.Execute(func() (int, error) { return 0, context.Canceled })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled passed through", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, excluded errors should not trip", b.State())
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		want  string
	}{
		{gobreaker.StateClosed, "closed"},
		{gobreaker.StateHalfOpen, "half-open"},
		{gobreaker.StateOpen, "open"},
	}
	for _, tt := range tests {
		if got := StateString(tt.state); got != tt.want {
			t.Errorf("StateString(%v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
