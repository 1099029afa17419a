package broker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/broker"
)

func consumeAsync(t *testing.T, b broker.Broker, queue string, prefetch int, h broker.HandlerFunc) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Consume(ctx, queue, prefetch, h) }()
	return cancel, done
}

func TestMemoryRoutesByTopic(t *testing.T) {
	t.Parallel()

	b := broker.NewMemory(broker.DefaultTopology())
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, broker.MainExchange, "notification.email", broker.Message{Body: []byte(`{}`)}))
	require.NoError(t, b.Publish(ctx, broker.MainExchange, broker.RoutingSlipProcessing, broker.Message{Body: []byte(`{}`)}))
	require.NoError(t, b.Publish(ctx, broker.MainExchange, broker.RoutingReportGeneration, broker.Message{Body: []byte(`{}`)}))
	require.NoError(t, b.Publish(ctx, broker.MainExchange, broker.RoutingEmailSend, broker.Message{Body: []byte(`{}`)}))

	assert.Equal(t, 1, b.Len(broker.NotificationsQueue))
	assert.Equal(t, 1, b.Len(broker.SlipProcessingQueue))
	assert.Equal(t, 1, b.Len(broker.ReportsQueue))
	assert.Equal(t, 1, b.Len(broker.EmailNotificationsQueue))
	assert.Equal(t, 0, b.Len(broker.PushNotificationsQueue))

	msgs := b.Messages(broker.NotificationsQueue)
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].ID)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestMemoryPublishErrors(t *testing.T) {
	t.Parallel()

	b := broker.NewMemory(broker.DefaultTopology())
	ctx := context.Background()

	err := b.Publish(ctx, "missing-exchange", "x", broker.Message{})
	assert.ErrorIs(t, err, broker.ErrUnknownExchange)

	err = b.Publish(ctx, broker.MainExchange, "unbound.key", broker.Message{})
	assert.ErrorIs(t, err, broker.ErrUnroutable)

	down := errors.New("connection refused")
	b.SetPublishError(down)
	assert.False(t, b.Healthy())
	assert.ErrorIs(t, b.Publish(ctx, broker.MainExchange, "notification.sms", broker.Message{}), down)
	assert.ErrorIs(t, broker.Healthcheck(b)(ctx), broker.ErrNotConnected)

	b.SetPublishError(nil)
	assert.True(t, b.Healthy())
	assert.NoError(t, b.Publish(ctx, "", broker.NotificationsQueue, broker.Message{}))
	assert.Equal(t, 1, b.Len(broker.NotificationsQueue))
}

func TestMemoryOutcomes(t *testing.T) {
	t.Parallel()

	b := broker.NewMemory(broker.DefaultTopology())
	ctx := context.Background()

	for _, id := range []string{"ack", "requeue", "reject"} {
		require.NoError(t, b.Publish(ctx, broker.MainExchange, "notification.push", broker.Message{ID: id}))
	}

	var requeued atomic.Int32
	var mu sync.Mutex
	seen := map[string]int{}

	cancel, done := consumeAsync(t, b, broker.NotificationsQueue, 1, func(_ context.Context, d broker.Delivery) broker.Outcome {
		mu.Lock()
		seen[d.ID]++
		mu.Unlock()
		switch d.ID {
		case "requeue":
			if !d.Redelivered {
				requeued.Add(1)
				return broker.Requeue
			}
			return broker.Ack
		case "reject":
			return broker.Reject
		default:
			return broker.Ack
		}
	})

	require.Eventually(t, func() bool {
		return b.Len(broker.DeadLetterQueueName(broker.NotificationsQueue)) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["requeue"] == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), requeued.Load())
	assert.Equal(t, 0, b.Len(broker.NotificationsQueue))
	dead := b.Messages(broker.DeadLetterQueueName(broker.NotificationsQueue))
	require.Len(t, dead, 1)
	assert.Equal(t, "reject", dead[0].ID)
}

func TestMemoryConsumeBoundsConcurrency(t *testing.T) {
	t.Parallel()

	b := broker.NewMemory(broker.DefaultTopology())
	ctx := context.Background()
	for range 20 {
		require.NoError(t, b.Publish(ctx, broker.MainExchange, broker.RoutingReportGeneration, broker.Message{}))
	}

	var inFlight, peak, handled atomic.Int32
	cancel, done := consumeAsync(t, b, broker.ReportsQueue, 3, func(context.Context, broker.Delivery) broker.Outcome {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		handled.Add(1)
		return broker.Ack
	})

	require.Eventually(t, func() bool { return handled.Load() == 20 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMemoryConsumeWaitsForInFlight(t *testing.T) {
	t.Parallel()

	b := broker.NewMemory(broker.DefaultTopology())
	require.NoError(t, b.Publish(context.Background(), broker.MainExchange, broker.RoutingSlipVerified, broker.Message{}))

	started := make(chan struct{})
	var finished atomic.Bool
	cancel, done := consumeAsync(t, b, broker.SlipProcessingQueue, 1, func(ctx context.Context, _ broker.Delivery) broker.Outcome {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(ctx.Err() == nil)
		return broker.Ack
	})

	<-started
	cancel()
	require.NoError(t, <-done)
	assert.True(t, finished.Load(), "handler should finish with a live context")
}

func TestMemoryConsumeValidation(t *testing.T) {
	t.Parallel()

	b := broker.NewMemory(broker.DefaultTopology())
	ctx := context.Background()
	noop := func(context.Context, broker.Delivery) broker.Outcome { return broker.Ack }

	assert.ErrorIs(t, b.Consume(ctx, broker.ReportsQueue, 0, noop), broker.ErrInvalidPrefetch)
	assert.ErrorIs(t, b.Consume(ctx, broker.ReportsQueue, 1, nil), broker.ErrNilHandler)
	assert.ErrorIs(t, b.Consume(ctx, "nope", 1, noop), broker.ErrUnknownQueue)
}

func TestDefaultTopology(t *testing.T) {
	t.Parallel()

	topo := broker.DefaultTopology()
	q, ok := topo.Queue(broker.NotificationsQueue)
	require.True(t, ok)
	assert.Equal(t, broker.DeadLetterExchange, q.DeadLetterExchange)
	assert.Equal(t, broker.NotificationsQueue, q.DeadLetterRoutingKey)
	assert.Equal(t, time.Hour, q.MessageTTL)
	assert.Equal(t, 10000, q.MaxLength)

	dlq, ok := topo.Queue(broker.DeadLetterQueueName(broker.NotificationsQueue))
	require.True(t, ok)
	assert.Equal(t, []string{broker.NotificationsQueue}, dlq.Bindings[broker.DeadLetterExchange])
	assert.Empty(t, dlq.DeadLetterExchange)
}

func TestNewUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := broker.New(context.Background(), broker.Config{Driver: "kafka"}, nil)
	assert.ErrorIs(t, err, broker.ErrUnknownDriver)

	b, err := broker.New(context.Background(), broker.Config{Driver: broker.DriverMemory}, nil)
	require.NoError(t, err)
	assert.True(t, b.Healthy())
}
