package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicy sets the policy for a channel.
func WithPolicy(channel string, p Policy) Option {
	return func(l *Limiter) { l.policies[strings.ToLower(channel)] = p }
}

// WithDefaultPolicy sets the policy for channels without their own.
func WithDefaultPolicy(p Policy) Option {
	return func(l *Limiter) { l.fallback = p }
}

// WithNow overrides the clock used to compute reset times.
func WithNow(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// Limiter applies per-channel fixed-window policies.
type Limiter struct {
	store    Store
	policies map[string]Policy
	fallback Policy
	now      func() time.Time
}

// NewLimiter creates a limiter over store. Every configured policy must be valid.
func NewLimiter(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	l := &Limiter{
		store:    store,
		policies: map[string]Policy{},
		fallback: Policy{Limit: 100, Window: time.Minute},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.fallback.validate(); err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}
	for channel, p := range l.policies {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("policy %q: %w", channel, err)
		}
	}
	return l, nil
}

// Policy returns the policy applied to channel.
func (l *Limiter) Policy(channel string) Policy {
	if p, ok := l.policies[strings.ToLower(channel)]; ok {
		return p
	}
	return l.fallback
}

// Allow admits and records one request for (key, channel) if the window has
// room. The check and the increment are a single store operation.
func (l *Limiter) Allow(ctx context.Context, key, channel string) (*Result, error) {
	storeKey, p, err := l.resolve(key, channel)
	if err != nil {
		return nil, err
	}

	allowed, count, ttl, err := l.store.Take(ctx, storeKey, p.Limit, p.Window)
	if err != nil {
		return nil, fmt.Errorf("take %s: %w", storeKey, err)
	}
	return l.result(p, allowed, count, ttl), nil
}

// IsAllowed reports whether a request would be admitted, without recording it.
func (l *Limiter) IsAllowed(ctx context.Context, key, channel string) (bool, error) {
	remaining, err := l.RemainingRequests(ctx, key, channel)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// RecordRequest counts a request regardless of the limit.
func (l *Limiter) RecordRequest(ctx context.Context, key, channel string) error {
	storeKey, p, err := l.resolve(key, channel)
	if err != nil {
		return err
	}
	if _, _, err := l.store.Increment(ctx, storeKey, p.Window); err != nil {
		return fmt.Errorf("increment %s: %w", storeKey, err)
	}
	return nil
}

// RemainingRequests returns how many requests the current window still admits.
func (l *Limiter) RemainingRequests(ctx context.Context, key, channel string) (int, error) {
	storeKey, p, err := l.resolve(key, channel)
	if err != nil {
		return 0, err
	}
	count, _, err := l.store.Get(ctx, storeKey)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", storeKey, err)
	}
	return max(p.Limit-int(count), 0), nil
}

// Status returns the current window without recording a request.
func (l *Limiter) Status(ctx context.Context, key, channel string) (*Result, error) {
	storeKey, p, err := l.resolve(key, channel)
	if err != nil {
		return nil, err
	}
	count, ttl, err := l.store.Get(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", storeKey, err)
	}
	return l.result(p, count < int64(p.Limit), count, ttl), nil
}

// Reset clears the window for (key, channel).
func (l *Limiter) Reset(ctx context.Context, key, channel string) error {
	storeKey, _, err := l.resolve(key, channel)
	if err != nil {
		return err
	}
	return l.store.Delete(ctx, storeKey)
}

func (l *Limiter) resolve(key, channel string) (string, Policy, error) {
	if key == "" || channel == "" {
		return "", Policy{}, ErrKeyRequired
	}
	channel = strings.ToLower(channel)
	return Key(channel, key), l.Policy(channel), nil
}

func (l *Limiter) result(p Policy, allowed bool, count int64, ttl time.Duration) *Result {
	if ttl <= 0 {
		ttl = p.Window
	}
	res := &Result{
		Allowed:   allowed,
		Limit:     p.Limit,
		Remaining: max(p.Limit-int(count), 0),
		ResetAt:   l.now().Add(ttl),
	}
	if !allowed {
		res.RetryAfter = ttl
	}
	return res
}
