// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/models"
)

const (
	defaultProviderTimeout = 12 * time.Second
	maxCompletionBytes     = 256 * 1024
)

// OpenAIProvider calls an OpenAI-compatible chat/completions endpoint.
type OpenAIProvider struct {
	cfg    config.ProviderConfig
	name   string
	client *http.Client
}

// NewOpenAIProvider creates a provider for cfg. cfg.Timeout bounds each
// call; zero uses 12s.
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	name := cfg.Model
	if cfg.Name != "" {
		name = cfg.Name + "/" + cfg.Model
	}
	return &OpenAIProvider{
		cfg:    cfg,
		name:   name,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns "<name>/<model>", or the model when no name is configured.
func (p *OpenAIProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends one completion request. Timeouts, non-2xx statuses,
// non-JSON content and schema violations are errors.
func (p *OpenAIProvider) Extract(ctx context.Context, req Request) (*models.ExtractedFields, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model:          p.cfg.Model,
		Temperature:    p.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Str("provider", p.name).Msg("Failed to close completion body")
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCompletionBytes))
	if err != nil {
		return nil, fmt.Errorf("read completion: %w", err)
	}

	logging.Ctx(ctx).Debug().
		Str("provider", p.name).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("latency", time.Since(start)).
		Msg("Completion received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("completion status %d", resp.StatusCode)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidOutput)
	}

	out, err := decodeOutput([]byte(stripCodeFence(cc.Choices[0].Message.Content)))
	if err != nil {
		return nil, err
	}
	return coerce(out), nil
}
