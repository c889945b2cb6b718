// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/momoflow/internal/breaker"
	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
)

// Result is a successful extraction.
type Result struct {
	Fields *models.ExtractedFields
	// Model is the Name of the provider that succeeded.
	Model string
	// Attempts counts providers actually called, including the successful
	// one. Providers skipped by an open breaker are not counted.
	Attempts int
}

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
	breakers  []*breaker.Breaker[*models.ExtractedFields]
}

// NewChain builds a chain over providers, each behind its own breaker.
func NewChain(cfg breaker.Config, providers ...Provider) *Chain {
	c := &Chain{
		providers: providers,
		breakers:  make([]*breaker.Breaker[*models.ExtractedFields], len(providers)),
	}
	for i, p := range providers {
		c.breakers[i] = breaker.New[*models.ExtractedFields]("extract-"+p.Name(), cfg, countsAsSuccess)
	}
	return c
}

// countsAsSuccess keeps cancellations and empty answers from opening a
// provider's breaker. Only transport and output failures count.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResult)
}

// Build assembles the chain described by cfg: the primary model, the
// fallback model, then the rules provider. The rules provider is always
// present when no model is configured.
func Build(cfg config.ExtractionConfig) *Chain {
	var providers []Provider
	for _, pc := range []config.ProviderConfig{cfg.Primary, cfg.Fallback} {
		if pc.Enabled() {
			providers = append(providers, NewOpenAIProvider(pc))
		}
	}
	if cfg.RulesFallback || len(providers) == 0 {
		providers = append(providers, NewRulesProvider())
	}
	return NewChain(cfg.Breaker, providers...)
}

// Providers returns the provider names in order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Extract runs the chain. A canceled or expired ctx stops the chain before
// the next provider. On exhaustion the error wraps ErrAllProvidersFailed and
// every provider error; Result.Attempts is still filled.
func (c *Chain) Extract(ctx context.Context, sender, body string) (Result, error) {
	if len(c.providers) == 0 {
		return Result{}, ErrNoProviders
	}

	req := Request{Sender: sender, Body: body}
	var (
		attempts int
		errs     []error
	)
	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		called := false
		start := time.Now()
		fields, err := c.breakers[i].Execute(func() (*models.ExtractedFields, error) {
			called = true
			f, err := p.Extract(ctx, req)
			if err == nil && (f == nil || f.Empty()) {
				return nil, ErrEmptyResult
			}
			return f, err
		})
		if called {
			attempts++
			metrics.RecordExtractionAttempt(p.Name(), time.Since(start), err)
		}

		if err == nil {
			fields.RawText = body
			return Result{Fields: fields, Model: p.Name(), Attempts: attempts}, nil
		}

		logging.Ctx(ctx).Warn().
			Str("provider", p.Name()).
			Bool("breaker_open", breaker.IsOpen(err)).
			Err(err).
			Msg("Extraction provider failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return Result{Attempts: attempts}, errors.Join(append([]error{ErrAllProvidersFailed}, errs...)...)
}

// Summary renders err for storage in extraction_error, keeping it to one
// line.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}
