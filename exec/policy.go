package exec

import (
	"time"

	"github.com/constellation-run/constellation/ir"
)

// maxBackoffDelay is the "sane max" cap named in §4.E.2.
const maxBackoffDelay = 60 * time.Second

// backoffDelay computes delay_ms * backoff_factor(attempt), capped, per the
// formula in §4.E.2. attempt is zero-based over the full attempt sequence
// a = 0 ... retry, including the first attempt — delay_ms is waited before
// every attempt, not just retries (§3.3: "initial delay before first
// attempt").
func backoffDelay(delayMs uint64, backoff ir.Backoff, attempt int) time.Duration {
	base := time.Duration(delayMs) * time.Millisecond
	var factor time.Duration
	switch backoff {
	case ir.BackoffFixed:
		factor = 1
	case ir.BackoffLinear:
		factor = time.Duration(attempt + 1)
	case ir.BackoffExponential:
		factor = 1 << attempt
	default:
		factor = 1
	}
	d := base * factor
	if d > maxBackoffDelay {
		d = maxBackoffDelay
	}
	return d
}
