// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package api

import (
	"context"
	"time"

	"github.com/tomtom215/momoflow/internal/ingest"
	"github.com/tomtom215/momoflow/internal/middleware"
	"github.com/tomtom215/momoflow/internal/models"
)

// Ingestor runs the ingestion steps for one delivery.
type Ingestor interface {
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// RecordReader serves the operator read API.
type RecordReader interface {
	GetRecord(ctx context.Context, id string) (*models.IngestedRecord, error)
	ListRecords(ctx context.Context, f models.RecordFilter) ([]models.IngestedRecord, error)
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
}

// DeviceRegistry reads and toggles registered devices.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	SetDeviceEnabled(ctx context.Context, id string, enabled bool) error
}

// DeviceIssuer registers devices and rotates their tokens.
type DeviceIssuer interface {
	Register(ctx context.Context, name string) (*models.DeviceCredential, error)
	Rotate(ctx context.Context, id string) (*models.DeviceCredential, error)
}

// Pinger checks storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of Handler. Latency is optional.
type Dependencies struct {
	Ingest  Ingestor
	Records RecordReader
	Devices DeviceRegistry
	Issuer  DeviceIssuer
	DB      Pinger
	Latency *middleware.LatencyMonitor

	// ExtractionProviders is reported by the stats endpoint.
	ExtractionProviders []string
}

// Handler serves the HTTP endpoints.
type Handler struct {
	ingest    Ingestor
	records   RecordReader
	devices   DeviceRegistry
	issuer    DeviceIssuer
	db        Pinger
	latency   *middleware.LatencyMonitor
	providers []string
	startTime time.Time
}

// NewHandler creates a handler over deps.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		ingest:    deps.Ingest,
		records:   deps.Records,
		devices:   deps.Devices,
		issuer:    deps.Issuer,
		db:        deps.DB,
		latency:   deps.Latency,
		providers: deps.ExtractionProviders,
		startTime: time.Now(),
	}
}
