package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T, clock *fakeClock, opts ...ratelimit.Option) *ratelimit.Limiter {
	t.Helper()
	store := ratelimit.NewMemoryStore(ratelimit.WithClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })

	l, err := ratelimit.NewLimiter(store, append([]ratelimit.Option{ratelimit.WithNow(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return l
}

func TestAllowWithinWindow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(t, clock, ratelimit.WithPolicy("sms", ratelimit.Policy{Limit: 10, Window: time.Minute}))
	ctx := context.Background()

	for i := range 10 {
		res, err := l.Allow(ctx, "user:1", "sms")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 10-(i+1), res.Remaining)
	}

	res, err := l.Allow(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), res.ResetAt)

	allowed, err := l.IsAllowed(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Different key and different channel have their own windows.
	res, err = l.Allow(ctx, "user:2", "sms")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = l.Allow(ctx, "user:1", "email")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWindowResetsAtBoundary(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(t, clock, ratelimit.WithPolicy("sms", ratelimit.Policy{Limit: 2, Window: time.Minute}))
	ctx := context.Background()

	for range 2 {
		res, err := l.Allow(ctx, "user:1", "sms")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	clock.Advance(59 * time.Second)
	res, err := l.Allow(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.ResetAt.Sub(clock.Now()))

	clock.Advance(time.Second)
	res, err = l.Allow(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestAllowIsAtomicUnderConcurrency(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	l := newLimiter(t, clock, ratelimit.WithPolicy("sms", ratelimit.Policy{Limit: 10, Window: time.Minute}))

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), "user:concurrent", "sms")
			if assert.NoError(t, err) && res.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
}

func TestRecordAndRemaining(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	l := newLimiter(t, clock, ratelimit.WithPolicy("push", ratelimit.Policy{Limit: 3, Window: time.Minute}))
	ctx := context.Background()

	remaining, err := l.RemainingRequests(ctx, "user:1", "PUSH")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	for range 5 {
		require.NoError(t, l.RecordRequest(ctx, "user:1", "push"))
	}
	remaining, err = l.RemainingRequests(ctx, "user:1", "push")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	status, err := l.Status(ctx, "user:1", "push")
	require.NoError(t, err)
	assert.False(t, status.Allowed)

	require.NoError(t, l.Reset(ctx, "user:1", "push"))
	remaining, err = l.RemainingRequests(ctx, "user:1", "push")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestDefaultPolicyAndValidation(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	_, err := ratelimit.NewLimiter(nil)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)

	_, err = ratelimit.NewLimiter(store, ratelimit.WithPolicy("sms", ratelimit.Policy{Limit: 0, Window: time.Minute}))
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)

	_, err = ratelimit.NewLimiter(store, ratelimit.WithDefaultPolicy(ratelimit.Policy{Limit: 1}))
	assert.ErrorIs(t, err, ratelimit.ErrInvalidWindow)

	var cfg ratelimit.Config
	cfg.ChatPushLimit, cfg.ChatPushWindow = 1000, time.Hour
	cfg.EmailLimit, cfg.EmailWindow = 100, time.Minute
	cfg.SMSLimit, cfg.SMSWindow = 10, time.Minute
	cfg.PushLimit, cfg.PushWindow = 500, time.Minute
	cfg.DefaultLimit, cfg.DefaultWindow = 50, time.Minute

	l, err := ratelimit.NewLimiter(store, cfg.Options()...)
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Policy{Limit: 1000, Window: time.Hour}, l.Policy("chat_push"))
	assert.Equal(t, ratelimit.Policy{Limit: 50, Window: time.Minute}, l.Policy("fax"))

	_, err = l.Allow(context.Background(), "", "sms")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ratelimit:email:user:42", ratelimit.Key("email", "user:42"))
}

func TestRetryAfterUsesLimiterClock(t *testing.T) {
	t.Parallel()

	// The fake clock sits well before wall time, so a wall-clock reading
	// would clamp to zero.
	clock := &fakeClock{now: time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := newLimiter(t, clock, ratelimit.WithPolicy("sms", ratelimit.Policy{Limit: 1, Window: time.Minute}))
	ctx := context.Background()

	res, err := l.Allow(ctx, "user:1", "sms")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Zero(t, res.RetryAfter)

	clock.Advance(15 * time.Second)
	res, err = l.Allow(ctx, "user:1", "sms")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	assert.Equal(t, 45*time.Second, res.RetryAfter)

	status, err := l.Status(ctx, "user:1", "sms")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 45*time.Second, status.RetryAfter)
}
