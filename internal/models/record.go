// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package models

import "time"

// ParseStatus is the extraction state of an ingested record.
type ParseStatus string

const (
	// ParsePending means the record is stored and extraction has not finished.
	ParsePending ParseStatus = "pending"
	// ParseParsed means a provider produced structured fields.
	ParseParsed ParseStatus = "parsed"
	// ParseFailed means every provider failed; the raw text is still stored.
	ParseFailed ParseStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s ParseStatus) Valid() bool {
	switch s {
	case ParsePending, ParseParsed, ParseFailed:
		return true
	}
	return false
}

// IngestedRecord is the durable backend row for one unique notification.
// ContentHash is unique across all records.
type IngestedRecord struct {
	ID              string           `json:"id"`
	DeviceRef       string           `json:"deviceRef"`
	RawText         string           `json:"rawText"`
	Sender          string           `json:"sender"`
	ReceivedAt      time.Time        `json:"receivedAt"`
	ContentHash     string           `json:"contentHash"`
	OriginSlot      *int             `json:"originSlot,omitempty"`
	ParseStatus     ParseStatus      `json:"parseStatus"`
	ParseAttempts   int              `json:"parseAttempts"`
	Extracted       *ExtractedFields `json:"extracted,omitempty"`
	ExtractionModel string           `json:"extractionModel,omitempty"`
	ExtractionError string           `json:"extractionError,omitempty"`
	IngestedAt      time.Time        `json:"ingestedAt"`
	ParsedAt        *time.Time       `json:"parsedAt,omitempty"`
}

// ExtractedFields holds best-effort structured fields. Every field except
// RawText is optional; absent means the provider could not determine it.
type ExtractedFields struct {
	Amount          *float64 `json:"amount,omitempty"`
	Currency        *string  `json:"currency,omitempty"`
	Counterparty    *string  `json:"counterparty,omitempty"`
	ReferenceID     *string  `json:"referenceId,omitempty"`
	Fee             *float64 `json:"fee,omitempty"`
	Balance         *float64 `json:"balance,omitempty"`
	TransactionType *string  `json:"transactionType,omitempty"`
	TransactionTime *string  `json:"transactionTime,omitempty"`

	// RawText is the verbatim message body, kept for human correction.
	RawText string `json:"rawText"`
}

// Empty reports whether no structured field was populated.
func (f *ExtractedFields) Empty() bool {
	return f.Amount == nil && f.Currency == nil && f.Counterparty == nil &&
		f.ReferenceID == nil && f.Fee == nil && f.Balance == nil &&
		f.TransactionType == nil && f.TransactionTime == nil
}

// RecordFilter narrows operator record listings.
type RecordFilter struct {
	Status   ParseStatus
	DeviceID string
	Sender   string

	// ReceivedFrom and ReceivedTo bound ReceivedAt as [from, to).
	ReceivedFrom *time.Time
	ReceivedTo   *time.Time

	Limit  int
	Offset int
}

// StatusCounts is the number of records in each parse status.
type StatusCounts struct {
	Pending int64 `json:"pending"`
	Parsed  int64 `json:"parsed"`
	Failed  int64 `json:"failed"`
	Total   int64 `json:"total"`
}
