package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
)

// Config configures every channel. Channels without credentials are not built.
type Config struct {
	Timeout          time.Duration `env:"CHANNEL_TIMEOUT" envDefault:"30s"`
	ChatPushToken    string        `env:"LINE_NOTIFY_DEFAULT_TOKEN"`
	ChatPushEnabled  bool          `env:"LINE_NOTIFY_ENABLED" envDefault:"true"`
	ChatPushEndpoint string        `env:"LINE_NOTIFY_URL" envDefault:"https://notify-api.line.me/api/notify"`

	Email EmailConfig
	SMS   SMSConfig
	Push  PushConfig
}

// FromConfig builds the configured channels. Chat push needs no server
// credentials, since tokens usually come with each message; email uses the
// development sender when EMAIL_DEV_DIR is set and no Postmark token is.
func FromConfig(ctx context.Context, cfg Config, log *slog.Logger) ([]notification.Channel, error) {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := []Option{
		WithLogger(log),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	}

	var channels []notification.Channel
	if cfg.ChatPushEnabled {
		channels = append(channels, NewChatPush(cfg.ChatPushToken, append(opts, WithEndpoint(cfg.ChatPushEndpoint))...))
	}

	switch {
	case cfg.Email.ServerToken != "":
		ch, err := NewPostmarkEmail(cfg.Email, opts...)
		if err != nil {
			return nil, fmt.Errorf("email channel: %w", err)
		}
		channels = append(channels, ch)
	case cfg.Email.DevDir != "":
		ch, err := NewEmail(NewDevSender(cfg.Email.DevDir), cfg.Email, opts...)
		if err != nil {
			return nil, fmt.Errorf("email channel: %w", err)
		}
		log.WarnContext(ctx, "email channel writes to disk", slog.String("dir", cfg.Email.DevDir))
		channels = append(channels, ch)
	}

	if cfg.SMS.AccountSID != "" {
		ch, err := NewTwilioSMS(cfg.SMS, opts...)
		if err != nil {
			return nil, fmt.Errorf("sms channel: %w", err)
		}
		channels = append(channels, ch)
	}

	if cfg.Push.ProjectID != "" {
		ch, err := NewFCMPush(ctx, cfg.Push, WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("push channel: %w", err)
		}
		channels = append(channels, ch)
	}

	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	for _, ch := range channels {
		log.InfoContext(ctx, "channel enabled", logger.Channel(ch.Type().String()))
	}
	return channels, nil
}
