package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	twilio "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
)

// MaxSMSLength is the longest body Twilio accepts.
const MaxSMSLength = 1600

// MessageCreator creates one SMS. The Api service of *twilio.RestClient
// implements it.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMSConfig configures the SMS channel.
type SMSConfig struct {
	AccountSID         string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken          string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber         string `env:"TWILIO_FROM_NUMBER"`
	DefaultCountryCode string `env:"SMS_DEFAULT_COUNTRY_CODE" envDefault:"66"`
}

// SMS sends text messages through Twilio.
type SMS struct {
	creator     MessageCreator
	from        string
	countryCode string
	opts        options
}

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// NewSMS creates an SMS channel on creator.
func NewSMS(creator MessageCreator, cfg SMSConfig, opts ...Option) (*SMS, error) {
	if creator == nil {
		return nil, fmt.Errorf("%w: message creator is required", ErrInvalidConfig)
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("%w: TWILIO_FROM_NUMBER is required", ErrInvalidConfig)
	}
	o := newOptions("", opts)
	o.logger = o.logger.With(logger.Channel(notification.ChannelSMS.String()))
	cc := strings.TrimPrefix(cfg.DefaultCountryCode, "+")
	if cc == "" {
		cc = "66"
	}
	return &SMS{creator: creator, from: cfg.FromNumber, countryCode: cc, opts: o}, nil
}

// NewTwilioSMS creates an SMS channel backed by the Twilio REST API.
func NewTwilioSMS(cfg SMSConfig, opts ...Option) (*SMS, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("%w: TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required", ErrInvalidConfig)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	client.SetTimeout(DefaultTimeout)
	return NewSMS(client.Api, cfg, opts...)
}

func (s *SMS) Type() notification.ChannelType { return notification.ChannelSMS }

func (s *SMS) Supports(t notification.ChannelType) bool {
	return t == notification.ChannelSMS
}

func (s *SMS) Send(ctx context.Context, msg notification.Message) notification.Result {
	if strings.TrimSpace(msg.Recipient.Phone) == "" {
		return notification.PermanentFailure("recipient phone number is required")
	}
	to := NormalizePhone(msg.Recipient.Phone, s.countryCode)
	if !e164.MatchString(to) {
		return notification.PermanentFailure("invalid recipient phone number")
	}
	log := s.opts.logger.With(logger.UserID(msg.UserID), slog.String("phone", MaskPhone(to)))

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(SMSBody(msg.Title, msg.Body))

	type outcome struct {
		msg *openapi.ApiV2010Message
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		m, err := s.creator.CreateMessage(params)
		done <- outcome{m, err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return errorFailure("Twilio", ctx.Err())
	case out = <-done:
	}

	if out.err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "sms rejected", logger.Error(out.err))
		return twilioFailure(out.err)
	}

	sid := ""
	if out.msg != nil && out.msg.Sid != nil {
		sid = *out.msg.Sid
	}
	log.LogAttrs(ctx, slog.LevelDebug, "sms sent", slog.String("sid", sid))
	return notification.Succeeded(sid, s.opts.now().UTC())
}

func twilioFailure(err error) notification.Result {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		detail := fmt.Sprintf("code %d: %s", restErr.Code, restErr.Message)
		return statusFailure("Twilio", restErr.Status, "", detail)
	}
	return errorFailure("Twilio", err)
}

// NormalizePhone converts a phone number to E.164. Numbers without a
// leading + get countryCode, replacing a leading trunk 0.
func NormalizePhone(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return "+" + d
	}
	if strings.HasPrefix(d, "0") {
		d = countryCode + d[1:]
	}
	return "+" + d
}

// MaskPhone hides the middle of a phone number for logging.
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return phone
	}
	return phone[:3] + "****" + phone[len(phone)-3:]
}

// SMSBody joins title and body and truncates the result to MaxSMSLength
// characters.
func SMSBody(title, body string) string {
	text := body
	if title != "" {
		text = title + ": " + body
	}
	return truncate(text, MaxSMSLength)
}
