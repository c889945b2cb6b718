// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package extract

import "strings"

// maxPromptBody bounds how much of a body is sent to a model.
const maxPromptBody = 2000

const systemPrompt = `You extract fields from a mobile money transaction SMS.
Return ONLY a JSON object with these optional keys:
  amount (number), currency (3-letter ISO 4217 code), counterparty (string),
  reference_id (string), fee (number), balance (number),
  transaction_type (one of: received, sent, payment, withdrawal, deposit, other),
  transaction_time (string, as written in the message).
Omit any key you cannot determine. Never invent values. Numbers must not
contain currency symbols or thousands separators.`

func buildUserPrompt(req Request) string {
	body := req.Body
	if len(body) > maxPromptBody {
		body = body[:maxPromptBody]
	}

	var b strings.Builder
	b.WriteString("Sender: ")
	b.WriteString(req.Sender)
	b.WriteString("\n\nMessage:\n")
	b.WriteString(body)
	return b.String()
}

// stripCodeFence removes a Markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
