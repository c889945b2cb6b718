// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// outputSchema accepts what a model may plausibly emit for each field.
// Numbers may arrive as strings and any field may be null; coercion
// narrows the values afterwards.
const outputSchema = `{
  "type": "object",
  "properties": {
    "amount":           {"type": ["number", "string", "null"]},
    "currency":         {"type": ["string", "null"], "maxLength": 16},
    "counterparty":     {"type": ["string", "null"], "maxLength": 200},
    "reference_id":     {"type": ["string", "null"], "maxLength": 100},
    "fee":              {"type": ["number", "string", "null"]},
    "balance":          {"type": ["number", "string", "null"]},
    "transaction_type": {"type": ["string", "null"], "maxLength": 50},
    "transaction_time": {"type": ["string", "null"], "maxLength": 64}
  }
}`

var compiledSchema = jsonschema.MustCompileString("momoflow-extraction.json", outputSchema)

// decodeOutput parses raw model content and validates it against the
// output schema.
func decodeOutput(raw []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: not JSON: %w", ErrInvalidOutput, err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidOutput)
	}
	return m, nil
}
