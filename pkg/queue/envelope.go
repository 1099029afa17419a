package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category identifies the payload variant carried by an Envelope.
type Category string

const (
	CategoryNotification     Category = "notification"
	CategorySlipProcessing   Category = "slip_processing"
	CategoryReportGeneration Category = "report_generation"
	CategoryEmail            Category = "email"
	CategoryPush             Category = "push"
)

// Envelope is the message exchanged over the broker. Exactly one payload
// field matching Category is set.
type Envelope struct {
	MessageID     uuid.UUID
	CreatedAt     time.Time
	RetryCount    int
	CorrelationID string
	Category      Category

	Notification *NotificationPayload
	Slip         *SlipProcessingPayload
	Report       *ReportGenerationPayload
	Email        *EmailPayload
	Push         *PushPayload
}

type header struct {
	MessageID     uuid.UUID `json:"messageId"`
	CreatedAt     time.Time `json:"createdAt"`
	RetryCount    int       `json:"retryCount"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Category      Category  `json:"category,omitempty"`
}

type validator interface {
	validate() error
}

// NewNotificationEnvelope wraps p in a fresh envelope.
func NewNotificationEnvelope(p NotificationPayload) *Envelope {
	return &Envelope{Category: CategoryNotification, Notification: &p}
}

// NewSlipEnvelope wraps p in a fresh envelope.
func NewSlipEnvelope(p SlipProcessingPayload) *Envelope {
	return &Envelope{Category: CategorySlipProcessing, Slip: &p}
}

// NewReportEnvelope wraps p in a fresh envelope.
func NewReportEnvelope(p ReportGenerationPayload) *Envelope {
	return &Envelope{Category: CategoryReportGeneration, Report: &p}
}

// NewEmailEnvelope wraps p in a fresh envelope.
func NewEmailEnvelope(p EmailPayload) *Envelope {
	return &Envelope{Category: CategoryEmail, Email: &p}
}

// NewPushEnvelope wraps p in a fresh envelope.
func NewPushEnvelope(p PushPayload) *Envelope {
	return &Envelope{Category: CategoryPush, Push: &p}
}

// payload returns the variant selected by Category, or nil.
func (e *Envelope) payload() (any, error) {
	var p any
	switch e.Category {
	case CategoryNotification:
		if e.Notification != nil {
			p = e.Notification
		}
	case CategorySlipProcessing:
		if e.Slip != nil {
			p = e.Slip
		}
	case CategoryReportGeneration:
		if e.Report != nil {
			p = e.Report
		}
	case CategoryEmail:
		if e.Email != nil {
			p = e.Email
		}
	case CategoryPush:
		if e.Push != nil {
			p = e.Push
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingPayload, e.Category)
	}
	return p, nil
}

// Clone returns a copy that can be modified without touching e. Payload
// structs are copied one level deep.
func (e *Envelope) Clone() *Envelope {
	c := *e
	if e.Notification != nil {
		p := *e.Notification
		c.Notification = &p
	}
	if e.Slip != nil {
		p := *e.Slip
		c.Slip = &p
	}
	if e.Report != nil {
		p := *e.Report
		c.Report = &p
	}
	if e.Email != nil {
		p := *e.Email
		c.Email = &p
	}
	if e.Push != nil {
		p := *e.Push
		c.Push = &p
	}
	return &c
}

// MarshalJSON writes the header and the payload fields as one flat object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	p, err := e.payload()
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	payloadJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Category, err)
	}
	if err := json.Unmarshal(payloadJSON, &fields); err != nil {
		return nil, fmt.Errorf("flatten %s payload: %w", e.Category, err)
	}

	headerJSON, err := json.Marshal(header{
		MessageID:     e.MessageID,
		CreatedAt:     e.CreatedAt,
		RetryCount:    e.RetryCount,
		CorrelationID: e.CorrelationID,
		Category:      e.Category,
	})
	if err != nil {
		return nil, err
	}
	// Header fields win over payload fields with the same name.
	if err := json.Unmarshal(headerJSON, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

// Encode serialises e for publishing.
func Encode(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, ErrMissingPayload
	}
	return json.Marshal(e)
}

// Decode parses a flat envelope. The category field takes precedence;
// fallback is used for producers that omit it. A messageId is required so
// redeliveries and retries resolve to the same record. Every failure wraps
// ErrMalformedEnvelope.
func Decode(data []byte, fallback Category) (*Envelope, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errors.Join(ErrMalformedEnvelope, err)
	}
	if h.MessageID == uuid.Nil {
		return nil, errors.Join(ErrMalformedEnvelope, ErrMissingMessageID)
	}
	if h.RetryCount < 0 {
		return nil, errors.Join(ErrMalformedEnvelope, fmt.Errorf("negative retryCount %d", h.RetryCount))
	}

	e := &Envelope{
		MessageID:     h.MessageID,
		CreatedAt:     h.CreatedAt,
		RetryCount:    h.RetryCount,
		CorrelationID: h.CorrelationID,
		Category:      h.Category,
	}
	if e.Category == "" {
		e.Category = fallback
	}

	var target validator
	switch e.Category {
	case CategoryNotification:
		e.Notification = &NotificationPayload{}
		target = e.Notification
	case CategorySlipProcessing:
		e.Slip = &SlipProcessingPayload{}
		target = e.Slip
	case CategoryReportGeneration:
		e.Report = &ReportGenerationPayload{}
		target = e.Report
	case CategoryEmail:
		e.Email = &EmailPayload{}
		target = e.Email
	case CategoryPush:
		e.Push = &PushPayload{}
		target = e.Push
	default:
		return nil, errors.Join(ErrMalformedEnvelope, fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category))
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, errors.Join(ErrMalformedEnvelope, err)
	}
	if err := target.validate(); err != nil {
		return nil, errors.Join(ErrMalformedEnvelope, err)
	}
	return e, nil
}
