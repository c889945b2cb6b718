// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package delivery

import (
	"fmt"

	"github.com/tomtom215/momoflow/internal/models"
)

// Kind classifies a delivery attempt.
type Kind int

const (
	// Success means the backend accepted the event (including as a duplicate
	// or as skipped). The item can be removed.
	Success Kind = iota
	// Retryable means the attempt may succeed later: server errors,
	// timeouts, connection failures, 408 and 429.
	Retryable
	// Terminal means the attempt will never succeed as sent: other 4xx
	// responses and missing configuration.
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Kind   Kind
	Reason string

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	// Response is the decoded backend response, when one was readable.
	Response *models.IngestResponse
}

func (o Outcome) String() string {
	if o.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", o.Kind, o.StatusCode, o.Reason)
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
}

func succeeded(status int, resp *models.IngestResponse) Outcome {
	return Outcome{Kind: Success, StatusCode: status, Response: resp}
}

func retryable(status int, reason string) Outcome {
	return Outcome{Kind: Retryable, StatusCode: status, Reason: reason}
}

func terminal(status int, reason string) Outcome {
	return Outcome{Kind: Terminal, StatusCode: status, Reason: reason}
}

// Classify maps an HTTP status code to an outcome kind.
func Classify(status int) Kind {
	switch {
	case status >= 200 && status < 300:
		return Success
	case status == 408, status == 429:
		return Retryable
	case status >= 500:
		return Retryable
	default:
		return Terminal
	}
}
