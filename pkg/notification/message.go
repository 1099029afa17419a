package notification

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Recipient holds the provider addressing for a message. Only the field of
// the target channel is used.
type Recipient struct {
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
	ChatToken   string `json:"chatToken,omitempty"`
}

// Message is a single delivery attempt handed to a Channel.
type Message struct {
	NotificationID uuid.UUID
	UserID         uuid.UUID
	Channel        ChannelType
	Priority       Priority
	Title          string
	Body           string
	TemplateCode   string
	Placeholders   map[string]string
	Language       string
	Recipient      Recipient
	ImageURL       string
	CallbackURL    string
	Data           map[string]any
	CorrelationID  string
}

func (m Message) validate() error {
	if m.UserID == uuid.Nil {
		return ErrUserRequired
	}
	if m.Channel == "" {
		return ErrChannelRequired
	}
	if m.Title == "" && m.Body == "" && m.TemplateCode == "" {
		return ErrEmptyContent
	}
	return nil
}

// clone returns a copy that shares no maps with m.
func (m Message) clone() Message {
	m.Placeholders = maps.Clone(m.Placeholders)
	m.Data = maps.Clone(m.Data)
	return m
}

// Result is the outcome of a delivery attempt.
type Result struct {
	Success           bool
	NotificationID    uuid.UUID
	ProviderMessageID string
	SentAt            *time.Time
	Error             string
	Failure           FailureKind
	RetryAfter        time.Duration
	Metadata          map[string]any
}

// Succeeded returns a successful result.
func Succeeded(providerMessageID string, at time.Time) Result {
	return Result{Success: true, ProviderMessageID: providerMessageID, SentAt: &at}
}

// TransientFailure returns a failure worth retrying.
func TransientFailure(msg string) Result {
	return Result{Error: msg, Failure: FailureTransient}
}

// PermanentFailure returns a failure that retrying cannot fix.
func PermanentFailure(msg string) Result {
	return Result{Error: msg, Failure: FailurePermanent}
}

// RateLimitedFailure returns a failure caused by a rate limit.
func RateLimitedFailure(retryAfter time.Duration) Result {
	return Result{Error: ErrRateLimited.Error(), Failure: FailureRateLimited, RetryAfter: retryAfter}
}

// SendRequest is the inbound request accepted from the REST layer.
type SendRequest struct {
	UserID       uuid.UUID         `json:"userId"`
	Channel      string            `json:"channel"`
	Priority     *Priority         `json:"priority,omitempty"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	TemplateCode string            `json:"templateCode,omitempty"`
	Placeholders map[string]string `json:"placeholders,omitempty"`
	Data         map[string]any    `json:"data,omitempty"`
	Language     string            `json:"language,omitempty"`
	Recipient    Recipient         `json:"recipient,omitzero"`
	CallbackURL  string            `json:"callbackUrl,omitempty"`
}

// ToMessage converts the request. Priority defaults to normal.
func (r SendRequest) ToMessage() (Message, error) {
	ct, err := ParseChannelType(r.Channel)
	if err != nil {
		return Message{}, err
	}
	priority := PriorityNormal
	if r.Priority != nil {
		priority = *r.Priority
	}
	m := Message{
		UserID:       r.UserID,
		Channel:      ct,
		Priority:     priority,
		Title:        r.Title,
		Body:         r.Message,
		TemplateCode: r.TemplateCode,
		Placeholders: r.Placeholders,
		Language:     r.Language,
		Recipient:    r.Recipient,
		CallbackURL:  r.CallbackURL,
		Data:         r.Data,
	}
	return m, m.validate()
}
