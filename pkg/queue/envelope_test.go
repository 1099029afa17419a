package queue_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/queue"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	notificationID := uuid.New()
	env := &queue.Envelope{
		MessageID:     uuid.New(),
		CreatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		RetryCount:    2,
		CorrelationID: "corr-42",
		Category:      queue.CategoryNotification,
		Notification: &queue.NotificationPayload{
			NotificationID: &notificationID,
			UserID:         uuid.New(),
			Channel:        "email",
			Title:          "Slip verified",
			Message:        "Your slip was verified",
			Priority:       2,
			Data:           map[string]any{"slipId": "abc"},
			TemplateCode:   "SLIP_VERIFIED",
			Placeholders:   map[string]string{"amount": "100"},
		},
	}

	data, err := queue.Encode(env)
	require.NoError(t, err)

	decoded, err := queue.Decode(data, "")
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelopeWireShapeIsFlat(t *testing.T) {
	t.Parallel()

	env := queue.NewNotificationEnvelope(queue.NotificationPayload{
		UserID:   uuid.New(),
		Channel:  "sms",
		Title:    "t",
		Message:  "m",
		Priority: 1,
	})
	env.MessageID = uuid.New()
	env.CreatedAt = time.Now().UTC()

	data, err := queue.Encode(env)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"messageId", "createdAt", "retryCount", "userId", "channel", "title", "message", "priority"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "correlationId")
	assert.NotContains(t, fields, "notification")
}

func TestDecodeUsesFallbackCategory(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"messageId": "8f7a3c52-2b8e-4d4f-9a57-5d7f3c0b1e11",
		"createdAt": "2024-05-01T10:00:00Z",
		"retryCount": 0,
		"slipId": "0f3c5a1e-7b0e-4c8a-9e0b-3f2d7a6c9b11",
		"userId": "6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f",
		"imageUrl": "https://cdn.example.com/slip.png"
	}`)

	env, err := queue.Decode(raw, queue.CategorySlipProcessing)
	require.NoError(t, err)
	require.NotNil(t, env.Slip)
	assert.Equal(t, queue.CategorySlipProcessing, env.Category)
	assert.Equal(t, "OCR", env.Slip.ProcessingType)
	assert.Nil(t, env.Notification)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":         `{{{`,
		"unknown category": `{"category":"fax","messageId":"8f7a3c52-2b8e-4d4f-9a57-5d7f3c0b1e11"}`,
		"missing user":     `{"category":"notification","messageId":"8f7a3c52-2b8e-4d4f-9a57-5d7f3c0b1e11","channel":"email"}`,
		"missing channel":  `{"category":"notification","messageId":"8f7a3c52-2b8e-4d4f-9a57-5d7f3c0b1e11","userId":"6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f"}`,
		"negative retries": `{"category":"notification","messageId":"8f7a3c52-2b8e-4d4f-9a57-5d7f3c0b1e11","retryCount":-1,"userId":"6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f","channel":"sms"}`,
		"bad field type":   `{"category":"notification","messageId":"8f7a3c52-2b8e-4d4f-9a57-5d7f3c0b1e11","userId":"6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f","channel":"sms","priority":"high"}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := queue.Decode([]byte(raw), queue.CategoryNotification)
			assert.ErrorIs(t, err, queue.ErrMalformedEnvelope)
		})
	}
}

func TestDecodeRequiresMessageID(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"absent": `{"category":"notification","userId":"6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f","channel":"email","title":"x"}`,
		"nil":    `{"category":"notification","messageId":"00000000-0000-0000-0000-000000000000","userId":"6c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f","channel":"email","title":"x"}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := queue.Decode([]byte(raw), queue.CategoryNotification)
			assert.ErrorIs(t, err, queue.ErrMalformedEnvelope)
			assert.ErrorIs(t, err, queue.ErrMissingMessageID)
		})
	}
}

func TestEncodeRequiresPayload(t *testing.T) {
	t.Parallel()

	_, err := queue.Encode(&queue.Envelope{Category: queue.CategoryEmail})
	assert.ErrorIs(t, err, queue.ErrMissingPayload)

	_, err = queue.Encode(&queue.Envelope{Category: "fax"})
	assert.ErrorIs(t, err, queue.ErrUnknownCategory)
}

func TestEnvelopeClone(t *testing.T) {
	t.Parallel()

	env := queue.NewEmailEnvelope(queue.EmailPayload{To: "a@example.com", Subject: "hi"})
	c := env.Clone()
	c.RetryCount = 5
	c.Email.Subject = "changed"

	assert.Equal(t, 0, env.RetryCount)
	assert.Equal(t, "hi", env.Email.Subject)
}
