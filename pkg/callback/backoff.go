package callback

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns the delay before retry number attempt, starting at 1.
type Backoff interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff doubles (or multiplies by Multiplier) the delay on
// every attempt, capped at MaxInterval, spread by JitterFactor.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	initial := e.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	ceiling := e.MaxInterval
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	return time.Duration(min(interval, float64(ceiling)))
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff time.Duration

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(f)
}

// DefaultBackoff starts at one second and caps at thirty, with 10% jitter.
func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.1,
	}
}
