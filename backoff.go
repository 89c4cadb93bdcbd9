package engine

import (
	"math/rand/v2"
	"time"
)

// backoffDelay returns the delay before retrying after the given attempt
// (1-indexed). Every kind is clamped to MaxDelay when MaxDelay > 0.
//
// The jitter kind is exponential backoff scaled by a uniform random factor
// in [0.5, 1.5), clamped after scaling. It exists to spread retries of
// sibling tasks hitting the same upstream.
func backoffDelay(p *RetryPolicy, attempt int) time.Duration {
	if p == nil || p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch p.Backoff {
	case BackoffLinear:
		delay = p.BaseDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = exponentialDelay(p.BaseDelay, attempt)
	case BackoffJitter:
		//nolint:gosec // retry spreading does not need crypto randomness
		factor := 0.5 + rand.Float64()
		delay = time.Duration(float64(exponentialDelay(p.BaseDelay, attempt)) * factor)
	default: // BackoffFixed and unset
		delay = p.BaseDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// exponentialDelay is base * 2^(attempt-1), saturating instead of
// overflowing for large attempt counts.
func exponentialDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		next := delay * 2
		if next < delay {
			return 1<<63 - 1 // overflow: saturate
		}
		delay = next
	}
	return delay
}
