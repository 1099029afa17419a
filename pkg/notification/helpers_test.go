package notification_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/broker"
	"github.com/slipverify/notifier/pkg/notification"
	"github.com/slipverify/notifier/pkg/queue"
)

// fakeChannel returns scripted results; the last result repeats.
type fakeChannel struct {
	typ     notification.ChannelType
	delay   time.Duration
	mu      sync.Mutex
	results []notification.Result
	sent    []notification.Message
}

func newFakeChannel(typ notification.ChannelType, results ...notification.Result) *fakeChannel {
	if len(results) == 0 {
		results = []notification.Result{notification.Succeeded("provider-1", time.Now())}
	}
	return &fakeChannel{typ: typ, results: results}
}

func (f *fakeChannel) Type() notification.ChannelType { return f.typ }

func (f *fakeChannel) Supports(t notification.ChannelType) bool { return t == f.typ }

func (f *fakeChannel) Send(ctx context.Context, msg notification.Message) notification.Result {
	f.mu.Lock()
	idx := min(len(f.sent), len(f.results)-1)
	f.sent = append(f.sent, msg)
	res := f.results[idx]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return notification.TransientFailure(ctx.Err().Error())
		}
	}
	return res
}

func (f *fakeChannel) Sent() []notification.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification.Message(nil), f.sent...)
}

type fakeCallbacks struct {
	mu      sync.Mutex
	reports []notification.DeliveryReport
	urls    []string
}

func (f *fakeCallbacks) Send(_ context.Context, url string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.reports = append(f.reports, payload.(notification.DeliveryReport))
	return nil
}

func (f *fakeCallbacks) Reports() []notification.DeliveryReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification.DeliveryReport(nil), f.reports...)
}

type clock struct {
	now atomic.Pointer[time.Time]
}

func newClock() *clock {
	c := &clock{}
	c.Set(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return c
}

func (c *clock) Now() time.Time          { return *c.now.Load() }
func (c *clock) Set(t time.Time)         { c.now.Store(&t) }
func (c *clock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

func newService(t *testing.T, store notification.Storage, channels []notification.Channel, opts ...notification.ServiceOption) *notification.Service {
	t.Helper()
	svc, err := notification.NewService(store, notification.NewRegistry(channels...), opts...)
	require.NoError(t, err)
	return svc
}

func emailMessage(userID uuid.UUID) notification.Message {
	return notification.Message{
		UserID:    userID,
		Channel:   notification.ChannelEmail,
		Priority:  notification.PriorityNormal,
		Title:     "Slip received",
		Body:      "We received your payment slip.",
		Recipient: notification.Recipient{Email: "user@example.com"},
	}
}

// runConsumer consumes the notifications queue with svc until the test ends.
func runConsumer(t *testing.T, b broker.Broker, svc *notification.Service, opts ...queue.ConsumerOption) {
	t.Helper()
	opts = append([]queue.ConsumerOption{
		queue.WithCategory(queue.CategoryNotification),
		queue.WithBackoff(queue.NoBackoff),
		queue.WithDeadLetterHook(svc.OnDeadLetter),
	}, opts...)
	c, err := queue.NewConsumer(b, broker.NotificationsQueue, queue.HandlerFunc(svc.HandleEnvelope), opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx)() }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}
