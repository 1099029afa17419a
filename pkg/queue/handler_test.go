package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/queue"
)

func TestNewHandlerSelectsPayload(t *testing.T) {
	t.Parallel()

	var got *queue.ReportGenerationPayload
	h := queue.NewHandler(func(_ context.Context, _ *queue.Envelope, p *queue.ReportGenerationPayload) error {
		got = p
		return nil
	})

	env := queue.NewReportEnvelope(queue.ReportGenerationPayload{ReportID: uuid.New(), ReportType: "monthly"})
	require.NoError(t, h.Handle(context.Background(), env))
	require.NotNil(t, got)
	assert.Equal(t, "monthly", got.ReportType)

	err := h.Handle(context.Background(), queue.NewEmailEnvelope(queue.EmailPayload{To: "a@example.com"}))
	assert.ErrorIs(t, err, queue.ErrPayloadMismatch)
	assert.True(t, queue.IsPermanent(err))
}

func TestErrorMarkers(t *testing.T) {
	t.Parallel()

	base := errors.New("bad token")
	assert.True(t, queue.IsPermanent(queue.Permanent(base)))
	assert.ErrorIs(t, queue.Permanent(base), base)
	assert.Nil(t, queue.Permanent(nil))
	assert.False(t, queue.IsPermanent(base))

	deferred := queue.Defer(2*time.Second, base)
	delay, ok := queue.DeferDelay(deferred)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)
	assert.ErrorIs(t, deferred, base)

	_, ok = queue.DeferDelay(base)
	assert.False(t, ok)
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := queue.ExponentialBackoff(time.Second, 5*time.Second)
	assert.Equal(t, time.Second, b(0))
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 2*time.Second, b(2))
	assert.Equal(t, 4*time.Second, b(3))
	assert.Equal(t, 5*time.Second, b(4))
	assert.Zero(t, queue.NoBackoff(3))
}
