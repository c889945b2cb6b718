// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package extract turns notification bodies into structured fields through
// an ordered chain of providers: OpenAI-compatible models first, then a
// regex provider as the local last resort.
package extract

import (
	"context"
	"errors"

	"github.com/tomtom215/momoflow/internal/models"
)

var (
	// ErrAllProvidersFailed is returned by Chain.Extract when no provider
	// produced fields. The returned error also joins every provider error.
	ErrAllProvidersFailed = errors.New("all extraction providers failed")

	// ErrNoProviders means the chain was built without providers.
	ErrNoProviders = errors.New("no extraction providers configured")

	// ErrEmptyResult means a provider answered but populated no field.
	ErrEmptyResult = errors.New("extraction produced no fields")

	// ErrInvalidOutput means model output was not JSON or failed the schema.
	ErrInvalidOutput = errors.New("invalid model output")
)

// Request is the input to one extraction.
type Request struct {
	Sender string
	Body   string
}

// Provider turns a notification body into structured fields. Providers do
// not need to set RawText; the chain always sets it to the verbatim body.
type Provider interface {
	Name() string
	Extract(ctx context.Context, req Request) (*models.ExtractedFields, error)
}
