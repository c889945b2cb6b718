// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/tomtom215/momoflow/internal/models"
)

const (
	currencyPattern = `(GHS|GHC|GH₵|UGX|USH|KES|KSHS|KSH|TZS|RWF|ZMW|XOF|XAF|NGN|MWK|USD)`
	numberPattern   = `([0-9][0-9,]*(?:\.[0-9]+)?)`
)

var (
	currencyAmountRe = regexp.MustCompile(`(?i)\b` + currencyPattern + `\s?` + numberPattern)
	amountCurrencyRe = regexp.MustCompile(`(?i)` + numberPattern + `\s?` + currencyPattern + `\b`)

	feeRe     = regexp.MustCompile(`(?i)\b(?:fee|transaction\s+cost|charge)s?(?:\s+charged)?(?:\s+(?:of|is))?\s*[:,]?\s*` + currencyPattern + `?\s?` + numberPattern)
	balanceRe = regexp.MustCompile(`(?i)\bbalance(?:\s+is)?\s*:?\s*` + currencyPattern + `?\s?` + numberPattern)

	referenceRe = regexp.MustCompile(`(?i)\b(?:financial\s+transaction\s+id|transaction\s+id|trans(?:action)?\.?\s*id|txn\s*id|ref(?:erence)?(?:\s*(?:no|number))?)\b\.?\s*[:#]?\s*([A-Z0-9][A-Z0-9.\-]*[A-Z0-9])`)
	// M-PESA style receipts open with the transaction code.
	leadingCodeRe = regexp.MustCompile(`^([A-Z0-9]{8,12})\s+Confirmed`)

	counterpartyRe = regexp.MustCompile(`(?i)\b(?:from|to)\s+([A-Z][A-Z.'\- ]{1,60}?)(?:\s+\(?\+?[0-9]{6,}\)?|\s+on\s|\s+at\s|[.,;]|$)`)

	timeRe = regexp.MustCompile(`(?i)\b([0-9]{4}-[0-9]{2}-[0-9]{2}[ T][0-9]{2}:[0-9]{2}(?::[0-9]{2})?|[0-9]{1,2}/[0-9]{1,2}/[0-9]{2,4}(?:\s+(?:at\s+)?[0-9]{1,2}:[0-9]{2}(?:\s?[AP]M)?)?)`)

	typeRe = regexp.MustCompile(`(?i)\b(received|sent|paid|payment|withdrawn|withdrawal|withdraw|deposited|deposit|transferred|transfer|bought|purchased|purchase)\b`)
)

var transactionTypes = map[string]string{
	"received":    "received",
	"sent":        "sent",
	"transferred": "sent",
	"transfer":    "sent",
	"paid":        "payment",
	"payment":     "payment",
	"bought":      "payment",
	"purchased":   "payment",
	"purchase":    "payment",
	"withdrawn":   "withdrawal",
	"withdrawal":  "withdrawal",
	"withdraw":    "withdrawal",
	"deposited":   "deposit",
	"deposit":     "deposit",
}

// RulesProvider extracts fields with regular expressions. It needs no
// network and is the last provider of a chain.
type RulesProvider struct{}

// NewRulesProvider returns the regex provider.
func NewRulesProvider() *RulesProvider { return &RulesProvider{} }

// Name returns "rules".
func (*RulesProvider) Name() string { return "rules" }

// Extract never fails except on cancellation; an unrecognized body yields
// empty fields, which the chain treats as a failure.
func (*RulesProvider) Extract(ctx context.Context, req Request) (*models.ExtractedFields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	f := &models.ExtractedFields{}

	// Fee and balance amounts are excluded when picking the main amount.
	taken := map[int]bool{}
	if m := feeRe.FindStringSubmatchIndex(body); m != nil {
		f.Fee = parseGroup(body, m, 2)
		taken[m[4]] = true
	}
	if m := balanceRe.FindStringSubmatchIndex(body); m != nil {
		f.Balance = parseGroup(body, m, 2)
		taken[m[4]] = true
	}

	for _, re := range []*regexp.Regexp{currencyAmountRe, amountCurrencyRe} {
		curGroup, numGroup := 1, 2
		if re == amountCurrencyRe {
			curGroup, numGroup = 2, 1
		}
		for _, m := range re.FindAllStringSubmatchIndex(body, -1) {
			if taken[m[2*numGroup]] {
				continue
			}
			f.Amount = parseGroup(body, m, numGroup)
			f.Currency = normalizeCurrency(body[m[2*curGroup]:m[2*curGroup+1]])
			break
		}
		if f.Amount != nil {
			break
		}
	}

	if m := referenceRe.FindStringSubmatch(body); m != nil {
		ref := m[1]
		f.ReferenceID = &ref
	} else if m := leadingCodeRe.FindStringSubmatch(body); m != nil {
		ref := m[1]
		f.ReferenceID = &ref
	}

	if m := counterpartyRe.FindStringSubmatch(body); m != nil {
		f.Counterparty = coerceString(m[1])
	}
	if m := timeRe.FindStringSubmatch(body); m != nil {
		ts := m[1]
		f.TransactionTime = &ts
	}
	if m := typeRe.FindStringSubmatch(body); m != nil {
		if t, ok := transactionTypes[strings.ToLower(m[1])]; ok {
			f.TransactionType = &t
		}
	}
	return f, nil
}

// parseGroup parses submatch group g of m as an amount. A missing group
// or unparsable number yields nil.
func parseGroup(s string, m []int, g int) *float64 {
	start, end := m[2*g], m[2*g+1]
	if start < 0 {
		return nil
	}
	v, ok := parseAmount(s[start:end])
	if !ok {
		return nil
	}
	return &v
}
