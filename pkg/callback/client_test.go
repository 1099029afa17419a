package callback_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/callback"
)

type report struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
}

func TestClient_SendSigned(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"
	var (
		got    report
		verErr error
		id     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verErr = callback.Verify(secret, r.Header, body, time.Minute)
		id = r.Header.Get(callback.HeaderID)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := callback.NewClient(callback.WithSecret(secret))
	err := c.Send(context.Background(), srv.URL, report{NotificationID: "n-1", Status: "sent"})
	require.NoError(t, err)
	require.NoError(t, verErr)
	assert.NotEmpty(t, id)
	assert.Equal(t, report{NotificationID: "n-1", Status: "sent"}, got)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var (
		calls atomic.Int32
		mu    sync.Mutex
		ids   = map[string]bool{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get(callback.HeaderID)] = true
		mu.Unlock()
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	var attempts []callback.Attempt
	c := callback.NewClient(
		callback.WithBackoff(callback.FixedBackoff(time.Millisecond)),
		callback.WithOnAttempt(func(a callback.Attempt) { attempts = append(attempts, a) }),
	)
	require.NoError(t, c.Send(context.Background(), srv.URL, report{}))
	assert.EqualValues(t, 3, calls.Load())
	assert.Len(t, ids, 1, "retries reuse the callback id")

	require.Len(t, attempts, 3)
	assert.Equal(t, http.StatusServiceUnavailable, attempts[0].StatusCode)
	assert.Error(t, attempts[0].Err)
	assert.Equal(t, 3, attempts[2].Number)
	assert.NoError(t, attempts[2].Err)
}

func TestClient_PermanentFailureStopsRetrying(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown notification", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := callback.NewClient(callback.WithBackoff(callback.FixedBackoff(0)))
	err := c.Send(context.Background(), srv.URL, report{})
	require.ErrorIs(t, err, callback.ErrPermanent)
	assert.Contains(t, err.Error(), "unknown notification")
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := callback.NewClient(callback.WithMaxRetries(2), callback.WithBackoff(callback.FixedBackoff(0)))
	err := c.Send(context.Background(), srv.URL, report{})
	require.ErrorIs(t, err, callback.ErrDeliveryFailed)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := callback.NewClient(callback.WithBackoff(callback.FixedBackoff(time.Hour)))
	err := c.Send(ctx, srv.URL, report{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, callback.ErrDeliveryFailed)
}

func TestClient_CircuitOpensPerHost(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(healthy.Close)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	c := callback.NewClient(
		callback.WithMaxRetries(0),
		callback.WithClock(clock),
		callback.WithBreaker(callback.BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, RecoveryTimeout: time.Minute}),
	)
	ctx := context.Background()

	require.ErrorIs(t, c.Send(ctx, failing.URL, report{}), callback.ErrDeliveryFailed)
	require.ErrorIs(t, c.Send(ctx, failing.URL, report{}), callback.ErrDeliveryFailed)
	require.ErrorIs(t, c.Send(ctx, failing.URL, report{}), callback.ErrCircuitOpen)
	assert.EqualValues(t, 2, calls.Load())

	require.NoError(t, c.Send(ctx, healthy.URL, report{}))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	require.ErrorIs(t, c.Send(ctx, failing.URL, report{}), callback.ErrDeliveryFailed)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_InvalidInput(t *testing.T) {
	t.Parallel()

	c := callback.NewClient()
	ctx := context.Background()

	for _, u := range []string{"", "ftp://example.com/x", "http://", "::bad"} {
		assert.ErrorIs(t, c.Send(ctx, u, report{}), callback.ErrInvalidURL, u)
	}
	assert.ErrorIs(t, c.Send(ctx, "https://example.com", func() {}), callback.ErrInvalidPayload)
}
