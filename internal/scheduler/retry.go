package scheduler

import "time"

// maxBackoff caps how long a repeatedly failing filter waits between
// scheduler-driven retries.
const maxBackoff = time.Hour

// retryState tracks backoff for one filter whose last Job run returned
// an error (as distinct from a per-record FAILURE/CONNECTION_LOST,
// which the Job itself already handles via the ledger failure list).
type retryState struct {
	attempts    int
	lastError   string
	nextAttempt time.Time
}

// calculateBackoff doubles the wait on each attempt, starting at one
// minute, capped at maxBackoff. attempt is clamped before shifting so
// large attempt counts cannot overflow the duration arithmetic.
func calculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 6 {
		return maxBackoff
	}
	backoff := time.Minute * time.Duration(uint64(1)<<uint(attempt))
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}
