package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
)

// FCMScope is the OAuth2 scope required to send messages.
const FCMScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMEndpoint returns the HTTP v1 send URL of a Firebase project.
func FCMEndpoint(projectID string) string {
	return fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", projectID)
}

// PushConfig configures the mobile push channel.
type PushConfig struct {
	ProjectID string `env:"FCM_PROJECT_ID"`
	// CredentialsFile is a service account JSON key.
	CredentialsFile string `env:"FCM_CREDENTIALS_FILE"`
}

// Push sends mobile push notifications through FCM HTTP v1.
type Push struct {
	opts options
}

// NewPush creates a push channel posting to the endpoint set with
// WithEndpoint. The HTTP client must add authorization; see NewFCMPush.
func NewPush(opts ...Option) (*Push, error) {
	o := newOptions("", opts)
	if o.endpoint == "" {
		return nil, fmt.Errorf("%w: push endpoint is required", ErrInvalidConfig)
	}
	o.logger = o.logger.With(logger.Channel(notification.ChannelPush.String()))
	return &Push{opts: o}, nil
}

// NewFCMPush creates a push channel authenticated with a service account.
func NewFCMPush(ctx context.Context, cfg PushConfig, opts ...Option) (*Push, error) {
	if cfg.ProjectID == "" || cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("%w: FCM_PROJECT_ID and FCM_CREDENTIALS_FILE are required", ErrInvalidConfig)
	}
	key, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read FCM credentials: %v", ErrInvalidConfig, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, key, FCMScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse FCM credentials: %v", ErrInvalidConfig, err)
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = DefaultTimeout

	return NewPush(append([]Option{
		WithEndpoint(FCMEndpoint(cfg.ProjectID)),
		WithHTTPClient(client),
	}, opts...)...)
}

func (p *Push) Type() notification.ChannelType { return notification.ChannelPush }

func (p *Push) Supports(t notification.ChannelType) bool {
	return t == notification.ChannelPush
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroid        `json:"android"`
	APNS         fcmAPNS           `json:"apns"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

type fcmAndroid struct {
	Priority string `json:"priority"`
}

type fcmAPNS struct {
	Headers map[string]string `json:"headers"`
}

func (p *Push) Send(ctx context.Context, msg notification.Message) notification.Result {
	if msg.Recipient.DeviceToken == "" {
		return notification.PermanentFailure("device token is required")
	}

	body, err := json.Marshal(fcmRequest{Message: fcmMessage{
		Token: msg.Recipient.DeviceToken,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Image: msg.ImageURL,
		},
		Data:    stringData(msg.Data),
		Android: fcmAndroid{Priority: androidPriority(msg.Priority)},
		APNS:    fcmAPNS{Headers: map[string]string{"apns-priority": apnsPriority(msg.Priority)}},
	}})
	if err != nil {
		return notification.PermanentFailure("encode push request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.endpoint, bytes.NewReader(body))
	if err != nil {
		return notification.PermanentFailure("build push request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	log := p.opts.logger.With(logger.UserID(msg.UserID), slog.String("device", maskToken(msg.Recipient.DeviceToken)))
	resp, err := p.opts.httpClient.Do(req)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "push request failed", logger.Error(err))
		return errorFailure("FCM", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogAttrs(ctx, slog.LevelWarn, "push rejected", slog.Int("status", resp.StatusCode))
		return statusFailure("FCM", resp.StatusCode, resp.Header.Get("Retry-After"), fcmErrorMessage(respBody))
	}

	var out struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(respBody, &out)
	log.LogAttrs(ctx, slog.LevelDebug, "push sent", slog.String("fcm_message", out.Name))
	return notification.Succeeded(out.Name, p.opts.now().UTC())
}

func fcmErrorMessage(body []byte) string {
	var out struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &out) == nil && out.Error.Message != "" {
		return out.Error.Status + " " + out.Error.Message
	}
	return string(body)
}

func androidPriority(p notification.Priority) string {
	if p >= notification.PriorityHigh {
		return "high"
	}
	return "normal"
}

func apnsPriority(p notification.Priority) string {
	if p >= notification.PriorityHigh {
		return "10"
	}
	return "5"
}

// stringData converts message data to the string map FCM requires.
func stringData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

func maskToken(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}
