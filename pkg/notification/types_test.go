package notification_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/notification"
)

func TestParseChannelType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want notification.ChannelType
	}{
		{"email", notification.ChannelEmail},
		{"EMAIL", notification.ChannelEmail},
		{" Sms ", notification.ChannelSMS},
		{"LINE", notification.ChannelChatPush},
		{"chat-push", notification.ChannelChatPush},
		{"PUSH", notification.ChannelPush},
	}
	for _, tt := range tests {
		got, err := notification.ParseChannelType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := notification.ParseChannelType("pager")
	require.ErrorIs(t, err, notification.ErrUnknownChannel)
}

func TestChannelType_RoutingKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notification.sms", notification.ChannelSMS.RoutingKey())
	assert.Equal(t, "notification.chat_push", notification.ChannelChatPush.RoutingKey())
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()
	assert.True(t, notification.StatusSent.IsTerminal())
	assert.True(t, notification.StatusCancelled.IsTerminal())
	assert.False(t, notification.StatusFailed.IsTerminal())
	assert.False(t, notification.StatusRetrying.IsTerminal())
}

func TestSendRequest_ToMessage(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	msg, err := notification.SendRequest{
		UserID:       userID,
		Channel:      "Email",
		Title:        "Hi",
		Message:      "Body",
		TemplateCode: "WELCOME",
		Placeholders: map[string]string{"name": "A"},
	}.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, notification.ChannelEmail, msg.Channel)
	assert.Equal(t, notification.PriorityNormal, msg.Priority)
	assert.Equal(t, "Body", msg.Body)
	assert.Equal(t, userID, msg.UserID)

	urgent := notification.PriorityUrgent
	msg, err = notification.SendRequest{UserID: userID, Channel: "sms", Message: "x", Priority: &urgent}.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityUrgent, msg.Priority)

	_, err = notification.SendRequest{UserID: userID, Channel: "fax", Message: "x"}.ToMessage()
	require.ErrorIs(t, err, notification.ErrUnknownChannel)

	_, err = notification.SendRequest{Channel: "sms", Message: "x"}.ToMessage()
	require.ErrorIs(t, err, notification.ErrUserRequired)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	email := newFakeChannel(notification.ChannelEmail)
	sms := newFakeChannel(notification.ChannelSMS)
	r := notification.NewRegistry(email, nil, sms)

	ch, ok := r.Lookup(notification.ChannelEmail)
	require.True(t, ok)
	assert.Same(t, email, ch)

	_, ok = r.Lookup(notification.ChannelPush)
	assert.False(t, ok)

	assert.Equal(t, []notification.ChannelType{notification.ChannelEmail, notification.ChannelSMS}, r.Types())
}
