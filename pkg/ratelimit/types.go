package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy is the number of requests admitted per window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, p.Limit)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, p.Window)
	}
	return nil
}

// Result describes a rate limit decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter is the time left in the window when the request was denied,
	// measured on the limiter's clock. It is zero for allowed requests.
	RetryAfter time.Duration
}

// Store keeps window counters. Implementations must make Take atomic.
type Store interface {
	// Take increments the counter for key only while it is below limit. A
	// missing or expired counter starts a new window. It reports whether the
	// request was admitted, the counter after the call and the time left in
	// the window.
	Take(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, count int64, ttl time.Duration, err error)

	// Increment unconditionally increments the counter for key.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Get returns the counter and time left, or zeros when no window is active.
	Get(ctx context.Context, key string) (count int64, ttl time.Duration, err error)

	Delete(ctx context.Context, key string) error
}

// Key builds the store key for a channel and recipient key.
func Key(channel, key string) string {
	return "ratelimit:" + channel + ":" + key
}
