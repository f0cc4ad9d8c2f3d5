package usecase

import "time"

// Retry schedule indexed by attempt number (attempt 1 = first failure).
// Attempts beyond the schedule reuse the last value.
var retryBackoff = []time.Duration{
	1 * time.Hour,
	4 * time.Hour,
	24 * time.Hour,
	24 * time.Hour,
	24 * time.Hour,
}

const DefaultMaxAttempts = 5

// NextRetryAt is a pure function of (attempt count, now); the orchestrator polls
// it each cycle instead of arming timers.
func NextRetryAt(attempt int, now time.Time) time.Time {
	if attempt < 1 {
		attempt = 1
	}
	idx := attempt - 1
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	return now.Add(retryBackoff[idx])
}
