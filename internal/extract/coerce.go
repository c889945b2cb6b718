// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tomtom215/momoflow/internal/models"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// currencyAliases maps local spellings to ISO 4217 codes.
var currencyAliases = map[string]string{
	"GH₵":  "GHS",
	"GHC":  "GHS",
	"KSH":  "KES",
	"KSHS": "KES",
	"USH":  "UGX",
	"CFA":  "XOF",
}

// fieldAliases maps camelCase keys some models emit to the prompt's keys.
var fieldAliases = map[string]string{
	"referenceId":     "reference_id",
	"reference":       "reference_id",
	"transactionType": "transaction_type",
	"transactionTime": "transaction_time",
}

// coerce converts validated model output into fields. Anything that does
// not survive narrowing is absent rather than wrong.
func coerce(m map[string]any) *models.ExtractedFields {
	for alias, key := range fieldAliases {
		if v, ok := m[alias]; ok {
			if _, exists := m[key]; !exists {
				m[key] = v
			}
		}
	}

	return &models.ExtractedFields{
		Amount:          coerceNumber(m["amount"]),
		Currency:        coerceCurrency(m["currency"]),
		Counterparty:    coerceString(m["counterparty"]),
		ReferenceID:     coerceString(m["reference_id"]),
		Fee:             coerceNumber(m["fee"]),
		Balance:         coerceNumber(m["balance"]),
		TransactionType: coerceLower(m["transaction_type"]),
		TransactionTime: coerceString(m["transaction_time"]),
	}
}

func coerceNumber(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		f2, ok := parseAmount(t)
		if !ok {
			return nil
		}
		f = f2
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return &f
}

// parseAmount parses "1,250.00" style strings. Thousands separators are
// dropped; anything else non-numeric fails.
func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func coerceString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "unknown") {
		return nil
	}
	return &s
}

func coerceLower(v any) *string {
	s := coerceString(v)
	if s == nil {
		return nil
	}
	lower := strings.ToLower(*s)
	return &lower
}

func coerceCurrency(v any) *string {
	s := coerceString(v)
	if s == nil {
		return nil
	}
	return normalizeCurrency(*s)
}

// normalizeCurrency returns the upper-case ISO code for s, or nil.
func normalizeCurrency(s string) *string {
	code := strings.ToUpper(strings.TrimSpace(s))
	if alias, ok := currencyAliases[code]; ok {
		code = alias
	}
	if !currencyCodeRe.MatchString(code) {
		return nil
	}
	return &code
}
