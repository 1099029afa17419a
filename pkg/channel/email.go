package channel

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mrz1836/postmark"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
)

// EmailSender sends one email. *postmark.Client implements it.
type EmailSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Postmark error codes that clear up on their own.
const (
	postmarkMaintenance   = 100
	postmarkRateLimited   = 429
	postmarkServerFailure = 500
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email sends messages through Postmark.
type Email struct {
	sender  EmailSender
	from    string
	replyTo string
	stream  string
	opts    options
}

// EmailConfig configures the email channel.
type EmailConfig struct {
	ServerToken   string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken  string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail   string `env:"SENDER_EMAIL"`
	SupportEmail  string `env:"SUPPORT_EMAIL"`
	MessageStream string `env:"POSTMARK_MESSAGE_STREAM" envDefault:"outbound"`
	// DevDir enables the development sender, which writes emails to disk.
	DevDir string `env:"EMAIL_DEV_DIR"`
}

func (c EmailConfig) validate() error {
	if c.SenderEmail == "" || !emailRegex.MatchString(c.SenderEmail) {
		return fmt.Errorf("%w: SENDER_EMAIL must be a valid email address", ErrInvalidConfig)
	}
	if c.SupportEmail != "" && !emailRegex.MatchString(c.SupportEmail) {
		return fmt.Errorf("%w: SUPPORT_EMAIL must be a valid email address", ErrInvalidConfig)
	}
	return nil
}

// NewEmail creates an email channel on sender.
func NewEmail(sender EmailSender, cfg EmailConfig, opts ...Option) (*Email, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: email sender is required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := newOptions("", opts)
	o.logger = o.logger.With(logger.Channel(notification.ChannelEmail.String()))
	return &Email{
		sender:  sender,
		from:    cfg.SenderEmail,
		replyTo: cfg.SupportEmail,
		stream:  cfg.MessageStream,
		opts:    o,
	}, nil
}

// NewPostmarkEmail creates an email channel backed by the Postmark API.
func NewPostmarkEmail(cfg EmailConfig, opts ...Option) (*Email, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: POSTMARK_SERVER_TOKEN is required", ErrInvalidConfig)
	}
	client := postmark.NewClient(cfg.ServerToken, cfg.AccountToken)
	o := newOptions("", opts)
	client.HTTPClient = o.httpClient
	return NewEmail(client, cfg, opts...)
}

func (e *Email) Type() notification.ChannelType { return notification.ChannelEmail }

func (e *Email) Supports(t notification.ChannelType) bool {
	return t == notification.ChannelEmail
}

func (e *Email) Send(ctx context.Context, msg notification.Message) notification.Result {
	to := strings.TrimSpace(msg.Recipient.Email)
	if to == "" {
		return notification.PermanentFailure("recipient email is required")
	}
	if !emailRegex.MatchString(to) {
		return notification.PermanentFailure("invalid recipient email")
	}

	html, err := e.htmlBody(msg)
	if err != nil {
		return notification.PermanentFailure("render email body: " + err.Error())
	}

	email := postmark.Email{
		From:          e.from,
		To:            to,
		ReplyTo:       e.replyTo,
		Subject:       msg.Title,
		HTMLBody:      html,
		TextBody:      msg.Body,
		Cc:            joinList(msg.Data["cc"]),
		Bcc:           joinList(msg.Data["bcc"]),
		TrackOpens:    true,
		TrackLinks:    "HtmlOnly",
		MessageStream: e.stream,
	}
	if tag, ok := msg.Data["tag"].(string); ok {
		email.Tag = tag
	}

	resp, err := e.sender.SendEmail(ctx, email)
	if err != nil {
		e.opts.logger.LogAttrs(ctx, slog.LevelWarn, "email request failed",
			logger.UserID(msg.UserID),
			logger.Error(err),
		)
		return errorFailure("Postmark", err)
	}
	if resp.ErrorCode != 0 {
		e.opts.logger.LogAttrs(ctx, slog.LevelWarn, "email rejected",
			logger.UserID(msg.UserID),
			slog.Int64("error_code", resp.ErrorCode),
			slog.String("reason", resp.Message),
		)
		return postmarkFailure(resp)
	}

	e.opts.logger.LogAttrs(ctx, slog.LevelDebug, "email sent", logger.UserID(msg.UserID))
	return notification.Succeeded(resp.MessageID, e.opts.now().UTC())
}

func postmarkFailure(resp postmark.EmailResponse) notification.Result {
	msg := fmt.Sprintf("Postmark error %d: %s", resp.ErrorCode, resp.Message)
	switch resp.ErrorCode {
	case postmarkRateLimited:
		res := notification.RateLimitedFailure(time.Minute)
		res.Error = msg
		return res
	case postmarkMaintenance, postmarkServerFailure:
		return notification.TransientFailure(msg)
	default:
		return notification.PermanentFailure(msg)
	}
}

// htmlBody wraps plain bodies into the HTML layout. Bodies already marked
// as HTML are sent unchanged.
func (e *Email) htmlBody(msg notification.Message) (string, error) {
	if isHTML, _ := msg.Data["isHtml"].(bool); isHTML {
		return msg.Body, nil
	}
	var buf bytes.Buffer
	err := emailLayout.Execute(&buf, struct {
		Title string
		Lines []string
		Year  int
	}{
		Title: msg.Title,
		Lines: strings.Split(msg.Body, "\n"),
		Year:  e.opts.now().Year(),
	})
	return buf.String(), err
}

func joinList(v any) string {
	switch list := v.(type) {
	case []string:
		return strings.Join(list, ",")
	case []any:
		parts := make([]string, 0, len(list))
		for _, p := range list {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	case string:
		return list
	default:
		return ""
	}
}

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
.content { padding: 20px; background-color: #f9f9f9; }
.footer { padding: 10px; text-align: center; font-size: 12px; color: #666; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h1>{{.Title}}</h1></div>
<div class="content"><p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p></div>
<div class="footer"><p>&copy; {{.Year}} Slip Verification System. All rights reserved.</p></div>
</div>
</body>
</html>`))
