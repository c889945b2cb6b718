// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

// Package filter decides whether a captured notification is in scope.
//
// Two predicates must both hold: the sender is on the allowlist, and the
// trimmed body matches at least one transaction-shape pattern over its full
// length. The relay applies the filter before queuing to save bandwidth;
// the backend applies it again and its decision is the one that counts.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tomtom215/momoflow/internal/models"
)

// Rejection reasons reported by Decide. The backend echoes them in the
// ingest response "reason" field of skipped events.
const (
	ReasonEmptyBody        = "empty_body"
	ReasonSenderNotAllowed = "sender_not_allowed"
	ReasonNoPatternMatch   = "no_pattern_match"
)

// currencies is the alternation of ISO codes recognized next to an amount.
const currencies = `(?:GHS|GH₵|RWF|UGX|KES|KSH|TZS|ZMW|MWK|XAF|XOF|NGN|ZAR|ETB|SLE|LRD|GNF|CDF|USD|EUR)`

// amount matches 5000, 5,000 and 5000.50.
const amount = `[0-9][0-9,]*(?:\.[0-9]+)?`

// DefaultSenders lists the originator identifiers of supported mobile-money
// operators. Matching is case-insensitive equals-or-contains, so "MTN MoMo"
// is accepted through "MoMo".
var DefaultSenders = []string{
	"MoMo",
	"MTN",
	"M-Money",
	"MobileMoney",
	"AirtelMoney",
	"Airtel Money",
	"MPESA",
	"M-PESA",
	"Vodafone Cash",
	"T-Cash",
	"Orange Money",
}

// money is an amount with its currency code, in either order.
const money = `(?:\b` + currencies + `\s*` + amount + `|\b` + amount + `\s*` + currencies + `\b)`

// transactionVerbs is the movement wording of operator notifications.
const transactionVerbs = `(?:received|sent|paid|payment|withdrawn|withdrawal|deposited|deposit|transferred|transfer|credited|debited|cash (?:in|out)|purchased|charged)`

// successWords is the confirmation wording of operator notifications.
const successWords = `(?:confirmed|completed|successful(?:ly)?|approved)`

// DefaultPatterns are the transaction-shape rules, evaluated in order.
// Each one describes an entire trimmed notification, so an amount and
// currency that occur in unrelated text are not enough on their own.
var DefaultPatterns = []string{
	// amount and currency with transaction wording, in either order
	`^.*\b` + transactionVerbs + `\b.*` + money + `.*$`,
	`^.*` + money + `.*\b` + transactionVerbs + `\b.*$`,
	// amount and currency with success or confirmation wording
	`^.*\b` + successWords + `\b.*` + money + `.*$`,
	`^.*` + money + `.*\b` + successWords + `\b.*$`,
	// balance wording followed by an amount
	`^.*\b(?:new |current |available |your )?(?:balance|bal)\b(?:\s+is)?\s*[:\-]?\s*(?:` + currencies + `)?\s*` + amount + `.*$`,
}

// Rules configures a Filter. Empty fields fall back to the defaults.
type Rules struct {
	// Senders is the allowlist of originator identifiers.
	Senders []string

	// Patterns replaces DefaultPatterns when non-empty.
	Patterns []string

	// ExtraPatterns are appended after Patterns.
	ExtraPatterns []string
}

// DefaultRules returns the built-in allowlist and pattern set.
func DefaultRules() Rules {
	return Rules{
		Senders:  append([]string(nil), DefaultSenders...),
		Patterns: append([]string(nil), DefaultPatterns...),
	}
}

// Decision is the outcome of Decide. Reason is empty when Accepted.
type Decision struct {
	Accepted bool
	Reason   string
}

// Filter is an immutable, concurrency-safe content filter.
type Filter struct {
	senders  []string
	patterns []*regexp.Regexp
}

// New compiles rules into a Filter. Patterns are compiled case-insensitive
// with dot matching newlines; a pattern that is not anchored at both ends is
// wrapped so it must describe the whole body.
func New(rules Rules) (*Filter, error) {
	senders := rules.Senders
	if len(senders) == 0 {
		senders = DefaultSenders
	}
	patterns := rules.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	patterns = append(append([]string(nil), patterns...), rules.ExtraPatterns...)

	f := &Filter{}
	for _, s := range senders {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			f.senders = append(f.senders, s)
		}
	}
	if len(f.senders) == 0 {
		return nil, fmt.Errorf("filter: sender allowlist is empty")
	}

	for i, p := range patterns {
		re, err := regexp.Compile("(?is)" + anchor(p))
		if err != nil {
			return nil, fmt.Errorf("filter: compile pattern %d: %w", i, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// MustNew is New that panics on error. Intended for the default rules.
func MustNew(rules Rules) *Filter {
	f, err := New(rules)
	if err != nil {
		panic(err)
	}
	return f
}

func anchor(p string) string {
	if strings.HasPrefix(p, "^") && strings.HasSuffix(p, "$") {
		return p
	}
	return "^(?:" + p + ")$"
}

// Accept reports whether ev is in scope.
func (f *Filter) Accept(ev models.CapturedEvent) bool {
	return f.Decide(ev.Sender, ev.Body).Accepted
}

// Decide evaluates both predicates and names the first one that failed.
func (f *Filter) Decide(sender, body string) Decision {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return Decision{Reason: ReasonEmptyBody}
	}
	if !f.SenderAllowed(sender) {
		return Decision{Reason: ReasonSenderNotAllowed}
	}
	if !f.ShapeMatches(trimmed) {
		return Decision{Reason: ReasonNoPatternMatch}
	}
	return Decision{Accepted: true}
}

// SenderAllowed reports whether sender case-insensitively equals or
// contains an allowlisted identifier.
func (f *Filter) SenderAllowed(sender string) bool {
	s := strings.ToLower(strings.TrimSpace(sender))
	if s == "" {
		return false
	}
	for _, allowed := range f.senders {
		if s == allowed || strings.Contains(s, allowed) {
			return true
		}
	}
	return false
}

// ShapeMatches reports whether the trimmed body matches any pattern.
func (f *Filter) ShapeMatches(body string) bool {
	body = strings.TrimSpace(body)
	for _, re := range f.patterns {
		if re.MatchString(body) {
			return true
		}
	}
	return false
}
