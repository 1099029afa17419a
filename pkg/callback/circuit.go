package callback

import (
	"sync"
	"time"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker opens after failureThreshold consecutive failures and lets a
// probe through once recoveryTimeout has passed. successThreshold probes
// must succeed before it closes again.
type breaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	state       circuitState
	failures    int
	successes   int
	lastFailure time.Time
}

func newBreaker(cfg BreakerConfig, now func() time.Time) *breaker {
	return &breaker{
		failureThreshold: max(cfg.FailureThreshold, 1),
		successThreshold: max(cfg.SuccessThreshold, 1),
		recoveryTimeout:  cfg.RecoveryTimeout,
		now:              now,
	}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuitOpen && b.now().Sub(b.lastFailure) >= b.recoveryTimeout {
		b.state = circuitHalfOpen
		b.successes = 0
	}
	return b.state != circuitOpen
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed:
		b.failures = 0
	case circuitHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = circuitClosed
			b.failures = 0
		}
	}
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case circuitClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = circuitOpen
		}
	case circuitHalfOpen:
		b.state = circuitOpen
		b.successes = 0
	}
}

func (b *breaker) current() circuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// breakers holds one breaker per destination host.
type breakers struct {
	mu  sync.Mutex
	cfg BreakerConfig
	now func() time.Time
	m   map[string]*breaker
}

func (bs *breakers) get(host string) *breaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.m[host]
	if !ok {
		b = newBreaker(bs.cfg, bs.now)
		bs.m[host] = b
	}
	return b
}
