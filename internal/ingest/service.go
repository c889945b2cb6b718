// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package ingest implements the backend side of notification delivery:
// validation, the authoritative content filter, device authentication,
// fingerprint deduplication, persistence and extraction.
//
// A request resolves to one of three outcomes (Accepted, Duplicate,
// Skipped) or to an error. Errors are either a *RejectError, which the
// client must not retry, or ErrUnavailable, which it should.
//
// Extraction runs synchronously but on a context detached from the
// request and bounded by IngestConfig.ExtractionTimeout, so a client that
// disconnects mid-request never leaves its record pending.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/momoflow/internal/auth"
	"github.com/tomtom215/momoflow/internal/config"
	"github.com/tomtom215/momoflow/internal/database"
	"github.com/tomtom215/momoflow/internal/extract"
	"github.com/tomtom215/momoflow/internal/filter"
	"github.com/tomtom215/momoflow/internal/fingerprint"
	"github.com/tomtom215/momoflow/internal/logging"
	"github.com/tomtom215/momoflow/internal/metrics"
	"github.com/tomtom215/momoflow/internal/models"
	"github.com/tomtom215/momoflow/internal/validation"
)

// Outcome is the result class of an ingestion that did not fail.
type Outcome int

const (
	// Accepted means a new record was stored.
	Accepted Outcome = iota
	// Duplicate means a record with the same fingerprint already existed.
	Duplicate
	// Skipped means the content filter rejected the message.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Request is one delivery from a relay.
type Request struct {
	Credential string
	Sender     string
	Body       string
	ReceivedAt string
	OriginSlot *int
}

// Result describes an ingestion that did not fail. ID and ParseStatus are
// empty for Skipped; Reason is set only for Skipped.
type Result struct {
	Outcome     Outcome
	ID          string
	ParseStatus models.ParseStatus
	Reason      string
}

// Store is the record persistence used by the service.
type Store interface {
	GetRecordByHash(ctx context.Context, contentHash string) (*models.IngestedRecord, error)
	InsertPendingRecord(ctx context.Context, rec *models.IngestedRecord) (bool, error)
	CompleteExtraction(ctx context.Context, id string, u database.ExtractionUpdate) (bool, error)
	TouchDevice(ctx context.Context, id string, at time.Time) error
}

// Authenticator resolves a credential to a registered device.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*models.Device, error)
}

// Extractor turns a body into structured fields.
type Extractor interface {
	Extract(ctx context.Context, sender, body string) (extract.Result, error)
}

// Service runs the ingestion steps.
type Service struct {
	store     Store
	auth      Authenticator
	filter    *filter.Filter
	extractor Extractor
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates an ingestion service.
func NewService(store Store, authn Authenticator, f *filter.Filter, ex Extractor, cfg config.IngestConfig) *Service {
	timeout := cfg.ExtractionTimeout
	if timeout <= 0 {
		timeout = config.MaxExtractionTimeout
	}
	return &Service{
		store:     store,
		auth:      authn,
		filter:    f,
		extractor: ex,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Ingest validates, filters, authenticates, deduplicates, stores and
// extracts one message. Extraction failures never fail ingestion; they
// are recorded on the record as parse_status failed.
func (s *Service) Ingest(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	defer func() { metrics.RecordIngest(outcomeLabel(res, err), time.Since(start)) }()

	wire := models.IngestRequest{
		Sender:     req.Sender,
		Body:       req.Body,
		ReceivedAt: req.ReceivedAt,
		OriginSlot: req.OriginSlot,
	}
	if verr := validation.ValidateStruct(&wire); verr != nil {
		return Result{}, reject(Invalid, verr.Error(), verr)
	}
	receivedAt, err := fingerprint.ParseTime(req.ReceivedAt)
	if err != nil {
		return Result{}, reject(Invalid, "receivedAt must be an RFC 3339 timestamp", err)
	}

	if d := s.filter.Decide(req.Sender, req.Body); !d.Accepted {
		return Result{Outcome: Skipped, Reason: d.Reason}, nil
	}

	// Registry and record writes before extraction share one write budget,
	// keeping the response inside config.IngestResponseBudget.
	storeCtx, cancelStore := context.WithTimeout(ctx, config.IngestWriteTimeout)
	defer cancelStore()

	device, err := s.authenticate(storeCtx, req.Credential)
	if err != nil {
		return Result{}, err
	}
	ctx = logging.ContextWithDeviceID(ctx, device.ID)
	storeCtx = logging.ContextWithDeviceID(storeCtx, device.ID)
	if terr := s.store.TouchDevice(storeCtx, device.ID, s.now().UTC()); terr != nil {
		logging.Ctx(ctx).Warn().Err(terr).Msg("Failed to update device last seen")
	}

	hash := fingerprint.Compute(req.Sender, req.Body, receivedAt)
	existing, err := s.store.GetRecordByHash(storeCtx, hash)
	switch {
	case err == nil:
		return Result{Outcome: Duplicate, ID: existing.ID, ParseStatus: existing.ParseStatus}, nil
	case !errors.Is(err, database.ErrNotFound):
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	rec := &models.IngestedRecord{
		ID:          uuid.New().String(),
		DeviceRef:   device.ID,
		RawText:     req.Body,
		Sender:      req.Sender,
		ReceivedAt:  receivedAt.UTC(),
		ContentHash: hash,
		OriginSlot:  req.OriginSlot,
		IngestedAt:  s.now().UTC(),
	}
	inserted, err := s.store.InsertPendingRecord(storeCtx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !inserted {
		return s.duplicateAfterRace(storeCtx, hash)
	}
	cancelStore()

	logging.Ctx(ctx).Info().
		Str("record_id", rec.ID).
		Str("content_hash", hash).
		Int("body_len", len(req.Body)).
		Msg("Record stored")

	extractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	status := s.Extract(extractCtx, rec)

	return Result{Outcome: Accepted, ID: rec.ID, ParseStatus: status}, nil
}

// authenticate maps authenticator errors onto reject kinds.
func (s *Service) authenticate(ctx context.Context, credential string) (*models.Device, error) {
	device, err := s.auth.Authenticate(ctx, credential)
	switch {
	case err == nil:
		return device, nil
	case errors.Is(err, auth.ErrUnknownDevice):
		return nil, reject(Unauthorized, "unknown device credential", err)
	case errors.Is(err, auth.ErrDeviceDisabled):
		return nil, reject(Forbidden, "device disabled", err)
	case errors.Is(err, auth.ErrTokenRevoked):
		return nil, reject(Forbidden, "device token revoked", err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

// duplicateAfterRace resolves the loser of a concurrent insert to the
// winner's record.
func (s *Service) duplicateAfterRace(ctx context.Context, hash string) (Result, error) {
	winner, err := s.store.GetRecordByHash(ctx, hash)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Result{Outcome: Duplicate, ID: winner.ID, ParseStatus: winner.ParseStatus}, nil
}

// Extract runs the extraction chain for a pending record and writes the
// final parse state. It returns the status the record ends up with as far
// as this call knows: pending when the update could not be written or
// another writer completed the record first.
func (s *Service) Extract(ctx context.Context, rec *models.IngestedRecord) models.ParseStatus {
	log := logging.Ctx(ctx).With().Str("record_id", rec.ID).Logger()

	res, err := s.extractor.Extract(ctx, rec.Sender, rec.RawText)
	update := database.ExtractionUpdate{
		Attempts: res.Attempts,
		ParsedAt: s.now().UTC(),
	}
	if err != nil {
		update.Status = models.ParseFailed
		update.Error = extract.Summary(err)
		log.Warn().Int("attempts", res.Attempts).Err(err).Msg("Extraction failed")
	} else {
		update.Status = models.ParseParsed
		update.Fields = res.Fields
		update.Model = res.Model
	}

	// The record is already stored; the write must outlive ctx's deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.IngestWriteTimeout)
	defer cancel()
	updated, werr := s.store.CompleteExtraction(writeCtx, rec.ID, update)
	if werr != nil {
		log.Error().Err(werr).Msg("Failed to store extraction result")
		return models.ParsePending
	}
	if !updated {
		log.Debug().Msg("Record already completed by another writer")
		return models.ParsePending
	}

	metrics.RecordExtractionOutcome(string(update.Status))
	log.Info().
		Str("parse_status", string(update.Status)).
		Str("model", update.Model).
		Int("attempts", update.Attempts).
		Msg("Extraction completed")
	return update.Status
}

func outcomeLabel(res Result, err error) string {
	if err == nil {
		return res.Outcome.String()
	}
	if re, ok := AsReject(err); ok {
		return re.Kind.String()
	}
	return "error"
}
