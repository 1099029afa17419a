package channel_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/channel"
	"github.com/slipverify/notifier/pkg/notification"
)

type fakeEmailSender struct {
	resp  postmark.EmailResponse
	err   error
	sent  []postmark.Email
}

func (f *fakeEmailSender) SendEmail(_ context.Context, e postmark.Email) (postmark.EmailResponse, error) {
	f.sent = append(f.sent, e)
	return f.resp, f.err
}

var emailCfg = channel.EmailConfig{
	SenderEmail:   "noreply@slip.example.com",
	SupportEmail:  "support@slip.example.com",
	MessageStream: "outbound",
}

func TestNewEmail_Validation(t *testing.T) {
	t.Parallel()

	_, err := channel.NewEmail(nil, emailCfg)
	require.ErrorIs(t, err, channel.ErrInvalidConfig)

	_, err = channel.NewEmail(&fakeEmailSender{}, channel.EmailConfig{SenderEmail: "not-an-email"})
	require.ErrorIs(t, err, channel.ErrInvalidConfig)

	_, err = channel.NewPostmarkEmail(emailCfg)
	require.ErrorIs(t, err, channel.ErrInvalidConfig)
}

func TestEmail_Send(t *testing.T) {
	t.Parallel()

	sender := &fakeEmailSender{resp: postmark.EmailResponse{MessageID: "pm-1"}}
	ch, err := channel.NewEmail(sender, emailCfg)
	require.NoError(t, err)

	res := ch.Send(context.Background(), notification.Message{
		Title:     "Slip <verified>",
		Body:      "line one\nline two",
		Recipient: notification.Recipient{Email: "user@example.com"},
		Data:      map[string]any{"cc": []string{"a@example.com", "b@example.com"}},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "pm-1", res.ProviderMessageID)

	require.Len(t, sender.sent, 1)
	e := sender.sent[0]
	assert.Equal(t, "noreply@slip.example.com", e.From)
	assert.Equal(t, "support@slip.example.com", e.ReplyTo)
	assert.Equal(t, "user@example.com", e.To)
	assert.Equal(t, "a@example.com,b@example.com", e.Cc)
	assert.Contains(t, e.HTMLBody, "<h1>Slip &lt;verified&gt;</h1>")
	assert.Contains(t, e.HTMLBody, "line one<br>line two")
	assert.Equal(t, "line one\nline two", e.TextBody)
}

func TestEmail_SendHTMLUnchanged(t *testing.T) {
	t.Parallel()

	sender := &fakeEmailSender{}
	ch, err := channel.NewEmail(sender, emailCfg)
	require.NoError(t, err)

	res := ch.Send(context.Background(), notification.Message{
		Title:     "Report",
		Body:      "<table></table>",
		Recipient: notification.Recipient{Email: "user@example.com"},
		Data:      map[string]any{"isHtml": true},
	})
	require.True(t, res.Success)
	assert.Equal(t, "<table></table>", sender.sent[0].HTMLBody)
}

func TestEmail_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sender *fakeEmailSender
		to     string
		want   notification.FailureKind
	}{
		{"missing recipient", &fakeEmailSender{}, "", notification.FailurePermanent},
		{"invalid recipient", &fakeEmailSender{}, "nope", notification.FailurePermanent},
		{"network error", &fakeEmailSender{err: errors.New("connection reset")}, "u@example.com", notification.FailureTransient},
		{"inactive recipient", &fakeEmailSender{resp: postmark.EmailResponse{ErrorCode: 406, Message: "inactive"}}, "u@example.com", notification.FailurePermanent},
		{"maintenance", &fakeEmailSender{resp: postmark.EmailResponse{ErrorCode: 100, Message: "maintenance"}}, "u@example.com", notification.FailureTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch, err := channel.NewEmail(tt.sender, emailCfg)
			require.NoError(t, err)
			res := ch.Send(context.Background(), notification.Message{
				Title: "x", Body: "y", Recipient: notification.Recipient{Email: tt.to},
			})
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Failure)
		})
	}
}

func TestDevSender_WritesFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mail")
	ch, err := channel.NewEmail(channel.NewDevSender(dir), emailCfg)
	require.NoError(t, err)

	res := ch.Send(context.Background(), notification.Message{
		Title: "Welcome aboard!", Body: "hello", Recipient: notification.Recipient{Email: "user@example.com"},
	})
	require.True(t, res.Success, res.Error)
	assert.NotEmpty(t, res.ProviderMessageID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Contains(t, e.Name(), "welcome_aboard")
	}
}
