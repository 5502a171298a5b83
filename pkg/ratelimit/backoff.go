// Package ratelimit provides the per-provider semaphore and backoff
// utilities shared by the LLM client and the external search clients.
package ratelimit

import (
	"math/rand/v2"
	"time"
)

// Delay computes the backoff for the given 1-indexed attempt:
// min(maxBackoff, base * 2^(attempt-1)) + jitter, matching spec.md §4.8.
func Delay(attempt int, base, maxBackoff time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxBackoff {
			d = maxBackoff
			break
		}
	}
	jitter := time.Duration(rand.Int64N(int64(base) + 1))
	total := d + jitter
	if total > maxBackoff {
		total = maxBackoff
	}
	return total
}
