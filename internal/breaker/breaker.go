// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package breaker wraps sony/gobreaker with the logging and Prometheus
// instrumentation shared by the delivery transport and the extraction
// providers.
//
// The breaker uses real time for its interval and timeout. Tests exercise
// tripping through request counts rather than waiting on the clock.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
)

// Config controls when a breaker opens and how long it stays open.
type Config struct {
	// MaxRequests is the number of requests allowed through in half-open state.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval resets the counts in closed state. Zero never resets.
	Interval time.Duration `koanf:"interval"`

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration `koanf:"timeout"`

	// MinRequests is the minimum sample before the failure ratio is considered.
	MinRequests uint32 `koanf:"min_requests"`

	// FailureRatio opens the breaker once reached.
	FailureRatio float64 `koanf:"failure_ratio"`
}

// DefaultConfig returns the settings used for outbound HTTP dependencies:
// open at 60% failures over at least 10 requests, probe after 1 minute.
func DefaultConfig() Config {
	return Config{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker is a named circuit breaker.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// New creates a breaker. isSuccessful, when non-nil, decides which errors
// count as failures; errors it accepts are returned to the caller without
// moving the breaker toward open.
func New[T any](name string, cfg Config, isSuccessful func(error) bool) *Breaker[T] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := StateString(from)
			toStr := StateString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		IsSuccessful: isSuccessful,
	}

	return &Breaker[T]{
		cb:   gobreaker.NewCircuitBreaker[T](settings),
		name: name,
	}
}

// Execute runs fn through the breaker. While the breaker is open, fn is not
// called and the returned error satisfies IsOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if IsOpen(err) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Debug().Str("breaker", b.name).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			counts := b.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		}
		return result, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// Name returns the breaker name.
func (b *Breaker[T]) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

// IsOpen reports whether err is a rejection by an open or saturated
// half-open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// StateString converts circuit breaker state to string for logging.
func StateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
