// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/breaker"
	"github.com/tomtom215/momoflow/internal/fingerprint"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/models"
	"github.com/tomtom215/momoflow/internal/outbox"
	"github.com/tomtom215/momoflow/internal/secrets"
)

// IngestPath is appended to the configured endpoint.
const IngestPath = "/api/v1/ingest"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 * 1024

// errRetryable marks breaker failures. Only retryable outcomes count
// toward opening the breaker.
var errRetryable = errors.New("retryable delivery failure")

// Config holds delivery transport settings.
type Config struct {
	// Timeout bounds one attempt, including reading the response.
	Timeout time.Duration `koanf:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `koanf:"user_agent"`

	// Breaker configures the circuit breaker around the backend.
	Breaker breaker.Config `koanf:"breaker"`
}

// DefaultConfig returns the default transport settings.
func DefaultConfig() Config {
	return Config{
		Timeout:   45 * time.Second,
		UserAgent: "momoflow-relay/1.0",
		Breaker:   breaker.DefaultConfig(),
	}
}

// HTTPTransport delivers outbox items to the ingestion endpoint. It never
// retries internally; the scheduler owns retry policy.
type HTTPTransport struct {
	store   secrets.Store
	config  Config
	client  *http.Client
	breaker *breaker.Breaker[Outcome]
}

// NewHTTPTransport creates a transport that reads its credential and
// endpoint from store on every attempt.
func NewHTTPTransport(store secrets.Store, cfg Config) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &HTTPTransport{
		store:  store,
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New[Outcome]("relay-delivery", cfg.Breaker, func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}),
	}
}

// Deliver performs one attempt for item.
func (t *HTTPTransport) Deliver(ctx context.Context, item *outbox.Item) Outcome {
	credential, err := t.store.Get(ctx, secrets.KeyDeviceCredential)
	if err != nil {
		return t.configError(err, "device credential")
	}
	endpoint, err := t.store.Get(ctx, secrets.KeyEndpoint)
	if err != nil {
		return t.configError(err, "endpoint")
	}

	out, err := t.breaker.Execute(func() (Outcome, error) {
		o := t.post(ctx, strings.TrimRight(endpoint, "/")+IngestPath, credential, item)
		if o.Kind == Retryable {
			if ctx.Err() != nil {
				return o, ctx.Err()
			}
			return o, errRetryable
		}
		return o, nil
	})
	if breaker.IsOpen(err) {
		return retryable(0, "backend circuit open")
	}
	return out
}

func (t *HTTPTransport) configError(err error, what string) Outcome {
	if errors.Is(err, secrets.ErrNotFound) {
		return terminal(0, "not configured: missing "+what)
	}
	// A store that exists but cannot be read is treated as transient.
	return retryable(0, fmt.Sprintf("secure store read failed: %v", err))
}

func (t *HTTPTransport) post(ctx context.Context, url, credential string, item *outbox.Item) Outcome {
	payload := models.IngestRequest{
		Sender:     item.Sender,
		Body:       item.Body,
		ReceivedAt: fingerprint.CanonicalTime(item.OccurredAt),
		OriginSlot: item.OriginSlot,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return terminal(0, fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return terminal(0, fmt.Sprintf("invalid endpoint: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Idempotency-Key", item.ContentHash)
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return retryable(0, describeTransportError(err))
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	logging.Debug().
		Str("item_id", item.ID).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Delivery attempt completed")

	var decoded *models.IngestResponse
	if readErr == nil && len(raw) > 0 {
		var r models.IngestResponse
		if json.Unmarshal(raw, &r) == nil {
			decoded = &r
		}
	}

	switch Classify(resp.StatusCode) {
	case Success:
		return succeeded(resp.StatusCode, decoded)
	case Retryable:
		return retryable(resp.StatusCode, responseReason(resp, decoded))
	default:
		return terminal(resp.StatusCode, responseReason(resp, decoded))
	}
}

func responseReason(resp *http.Response, decoded *models.IngestResponse) string {
	if decoded != nil && decoded.Reason != "" {
		return decoded.Reason
	}
	return resp.Status
}

func describeTransportError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return fmt.Sprintf("network error: %v", err)
	}
}
