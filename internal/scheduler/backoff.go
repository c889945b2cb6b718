// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package scheduler

import "time"

// maxBackoffExponent caps the doubling: attempts past the fourth all wait
// 16 × base.
const maxBackoffExponent = 4

// Delay returns the wait before the next attempt of an item that has
// completed attempt failures: base × 2^min(attempt, 4).
//
//	Delay(0, time.Minute) // 1m
//	Delay(3, time.Minute) // 8m
//	Delay(9, time.Minute) // 16m
func Delay(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffExponent {
		attempt = maxBackoffExponent
	}
	return base * time.Duration(1<<attempt)
}
