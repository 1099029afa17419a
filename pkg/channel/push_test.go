package channel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/channel"
	"github.com/slipverify/notifier/pkg/notification"
)

type fcmPayload struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Data         map[string]string `json:"data"`
		Android      struct {
			Priority string `json:"priority"`
		} `json:"android"`
		APNS struct {
			Headers map[string]string `json:"headers"`
		} `json:"apns"`
	} `json:"message"`
}

func TestPush_Send(t *testing.T) {
	t.Parallel()

	var got fcmPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name":"projects/p/messages/0:123"}`))
	}))
	t.Cleanup(srv.Close)

	ch, err := channel.NewPush(channel.WithEndpoint(srv.URL), channel.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	res := ch.Send(context.Background(), notification.Message{
		Priority:  notification.PriorityUrgent,
		Title:     "Slip verified",
		Body:      "Amount 1500 THB",
		Recipient: notification.Recipient{DeviceToken: "device-token-123456"},
		Data:      map[string]any{"slipId": "s-1", "amount": 1500},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "projects/p/messages/0:123", res.ProviderMessageID)

	assert.Equal(t, "device-token-123456", got.Message.Token)
	assert.Equal(t, "Slip verified", got.Message.Notification["title"])
	assert.Equal(t, "high", got.Message.Android.Priority)
	assert.Equal(t, "10", got.Message.APNS.Headers["apns-priority"])
	assert.Equal(t, "s-1", got.Message.Data["slipId"])
	assert.Equal(t, "1500", got.Message.Data["amount"])
}

func TestPush_NormalPriority(t *testing.T) {
	t.Parallel()

	var got fcmPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name":"m"}`))
	}))
	t.Cleanup(srv.Close)

	ch, err := channel.NewPush(channel.WithEndpoint(srv.URL))
	require.NoError(t, err)
	res := ch.Send(context.Background(), notification.Message{
		Priority:  notification.PriorityNormal,
		Body:      "x",
		Recipient: notification.Recipient{DeviceToken: "tok"},
	})
	require.True(t, res.Success)
	assert.Equal(t, "normal", got.Message.Android.Priority)
	assert.Equal(t, "5", got.Message.APNS.Headers["apns-priority"])
}

func TestPush_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   notification.FailureKind
		errMsg string
	}{
		{"unregistered token", http.StatusNotFound, `{"error":{"status":"NOT_FOUND","message":"Requested entity was not found."}}`, notification.FailurePermanent, "NOT_FOUND"},
		{"quota", http.StatusTooManyRequests, `{"error":{"status":"RESOURCE_EXHAUSTED","message":"quota"}}`, notification.FailureRateLimited, "RESOURCE_EXHAUSTED"},
		{"unavailable", http.StatusServiceUnavailable, `unavailable`, notification.FailureTransient, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			ch, err := channel.NewPush(channel.WithEndpoint(srv.URL))
			require.NoError(t, err)
			res := ch.Send(context.Background(), notification.Message{
				Body: "x", Recipient: notification.Recipient{DeviceToken: "tok"},
			})
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Failure)
			assert.Contains(t, res.Error, tt.errMsg)
		})
	}
}

func TestPush_RequiresTokenAndEndpoint(t *testing.T) {
	t.Parallel()

	_, err := channel.NewPush()
	require.ErrorIs(t, err, channel.ErrInvalidConfig)

	ch, err := channel.NewPush(channel.WithEndpoint("http://127.0.0.1:1"))
	require.NoError(t, err)
	res := ch.Send(context.Background(), notification.Message{Body: "x"})
	assert.Equal(t, notification.FailurePermanent, res.Failure)

	_, err = channel.NewFCMPush(context.Background(), channel.PushConfig{ProjectID: "p"})
	require.ErrorIs(t, err, channel.ErrInvalidConfig)
}

func TestFCMEndpoint(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://fcm.googleapis.com/v1/projects/slip/messages:send", channel.FCMEndpoint("slip"))
}
