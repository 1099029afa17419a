package queue

import (
	"math"
	"time"
)

// Backoff returns the delay before the given retry attempt (1-based).
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles base with every attempt up to limit:
// base, 2*base, 4*base, ...
func ExponentialBackoff(base, limit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := float64(base) * math.Pow(2, float64(attempt-1))
		if limit > 0 && d > float64(limit) {
			return limit
		}
		return time.Duration(d)
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }
