package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
)

// DefaultChatPushURL is the LINE Notify endpoint.
const DefaultChatPushURL = "https://notify-api.line.me/api/notify"

// ChatPush sends messages through the LINE Notify API.
type ChatPush struct {
	defaultToken string
	opts         options
}

// NewChatPush creates a chat push channel. defaultToken is used for
// messages without their own token.
func NewChatPush(defaultToken string, opts ...Option) *ChatPush {
	o := newOptions(DefaultChatPushURL, opts)
	o.logger = o.logger.With(logger.Channel(notification.ChannelChatPush.String()))
	return &ChatPush{defaultToken: defaultToken, opts: o}
}

func (c *ChatPush) Type() notification.ChannelType { return notification.ChannelChatPush }

func (c *ChatPush) Supports(t notification.ChannelType) bool {
	return t == notification.ChannelChatPush
}

func (c *ChatPush) Send(ctx context.Context, msg notification.Message) notification.Result {
	token := msg.Recipient.ChatToken
	if token == "" {
		token = c.defaultToken
	}
	if token == "" {
		return notification.PermanentFailure("chat push token is required")
	}

	body, contentType, err := chatPushForm(msg)
	if err != nil {
		return notification.PermanentFailure("build chat push request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.endpoint, body)
	if err != nil {
		return notification.PermanentFailure("build chat push request: " + err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		c.opts.logger.LogAttrs(ctx, slog.LevelWarn, "chat push request failed",
			logger.UserID(msg.UserID),
			logger.Error(err),
		)
		return errorFailure("LINE", err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.opts.logger.LogAttrs(ctx, slog.LevelWarn, "chat push rejected",
			logger.UserID(msg.UserID),
			slog.Int("status", resp.StatusCode),
		)
		return statusFailure("LINE", resp.StatusCode, resp.Header.Get("Retry-After"), string(detail))
	}

	c.opts.logger.LogAttrs(ctx, slog.LevelDebug, "chat push sent", logger.UserID(msg.UserID))
	res := notification.Succeeded(chatPushMessageID(resp, detail), c.opts.now().UTC())
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		res.Metadata = map[string]any{"rateLimitRemaining": remaining}
	}
	return res
}

func chatPushForm(msg notification.Message) (io.Reader, string, error) {
	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Body
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{{"message", text}}
	if msg.ImageURL != "" {
		fields = append(fields,
			[2]string{"imageThumbnail", msg.ImageURL},
			[2]string{"imageFullsize", msg.ImageURL},
		)
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// chatPushMessageID returns the request id LINE reports, if any.
func chatPushMessageID(resp *http.Response, body []byte) string {
	if id := resp.Header.Get("X-Line-Request-Id"); id != "" {
		return id
	}
	var out struct {
		RequestID string `json:"requestId"`
	}
	if json.Unmarshal(body, &out) == nil {
		return out.RequestID
	}
	return ""
}
