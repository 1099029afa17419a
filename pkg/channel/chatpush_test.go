package channel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/channel"
	"github.com/slipverify/notifier/pkg/notification"
)

func TestChatPush_Send(t *testing.T) {
	t.Parallel()

	var (
		gotAuth    string
		gotMessage string
		gotImage   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotMessage = r.FormValue("message")
		gotImage = r.FormValue("imageFullsize")
		w.Header().Set("X-RateLimit-Remaining", "999")
		w.Header().Set("X-Line-Request-Id", "req-1")
		_, _ = w.Write([]byte(`{"status":200,"message":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	ch := channel.NewChatPush("default-token", channel.WithEndpoint(srv.URL))
	res := ch.Send(context.Background(), notification.Message{
		UserID:    uuid.New(),
		Channel:   notification.ChannelChatPush,
		Title:     "Slip verified",
		Body:      "Amount 1500 THB",
		ImageURL:  "https://cdn.example.com/slip.png",
		Recipient: notification.Recipient{ChatToken: "user-token"},
	})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "req-1", res.ProviderMessageID)
	assert.Equal(t, "999", res.Metadata["rateLimitRemaining"])
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "Slip verified\nAmount 1500 THB", gotMessage)
	assert.Equal(t, "https://cdn.example.com/slip.png", gotImage)
}

func TestChatPush_DefaultToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	t.Cleanup(srv.Close)

	res := channel.NewChatPush("default-token", channel.WithEndpoint(srv.URL)).
		Send(context.Background(), notification.Message{Body: "hi"})
	require.True(t, res.Success)
	assert.Equal(t, "Bearer default-token", gotAuth)

	res = channel.NewChatPush("", channel.WithEndpoint(srv.URL)).
		Send(context.Background(), notification.Message{Body: "hi"})
	assert.Equal(t, notification.FailurePermanent, res.Failure)
}

func TestChatPush_FailureClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   notification.FailureKind
	}{
		{http.StatusBadRequest, notification.FailurePermanent},
		{http.StatusUnauthorized, notification.FailurePermanent},
		{http.StatusRequestTimeout, notification.FailureTransient},
		{http.StatusTooManyRequests, notification.FailureRateLimited},
		{http.StatusInternalServerError, notification.FailureTransient},
		{http.StatusServiceUnavailable, notification.FailureTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "30")
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			res := channel.NewChatPush("t", channel.WithEndpoint(srv.URL)).
				Send(context.Background(), notification.Message{Body: "hi"})
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Failure)
			assert.Contains(t, res.Error, "LINE API error")
		})
	}
}

func TestChatPush_NetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := channel.NewChatPush("t", channel.WithEndpoint(url)).
		Send(context.Background(), notification.Message{Body: "hi"})
	assert.Equal(t, notification.FailureTransient, res.Failure)
}
