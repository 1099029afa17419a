package notification

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Notification is the durable record of a notification. Records are never
// deleted.
type Notification struct {
	ID                uuid.UUID         `json:"id"`
	UserID            uuid.UUID         `json:"userId"`
	Channel           ChannelType       `json:"channel"`
	Status            Status            `json:"status"`
	Priority          Priority          `json:"priority"`
	Title             string            `json:"title"`
	Body              string            `json:"message"`
	TemplateCode      string            `json:"templateCode,omitempty"`
	Placeholders      map[string]string `json:"placeholders,omitempty"`
	Language          string            `json:"language,omitempty"`
	Recipient         Recipient         `json:"recipient,omitzero"`
	ImageURL          string            `json:"imageUrl,omitempty"`
	CallbackURL       string            `json:"callbackUrl,omitempty"`
	Data              map[string]any    `json:"data,omitempty"`
	CorrelationID     string            `json:"correlationId,omitempty"`
	ProviderMessageID string            `json:"providerMessageId,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	RetryCount        int               `json:"retryCount"`
	SentAt            *time.Time        `json:"sentAt,omitempty"`
	ReadAt            *time.Time        `json:"readAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func newNotification(id uuid.UUID, m Message, status Status, now time.Time) *Notification {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Notification{
		ID:            id,
		UserID:        m.UserID,
		Channel:       m.Channel,
		Status:        status,
		Priority:      m.Priority,
		Title:         m.Title,
		Body:          m.Body,
		TemplateCode:  m.TemplateCode,
		Placeholders:  maps.Clone(m.Placeholders),
		Language:      m.Language,
		Recipient:     m.Recipient,
		ImageURL:      m.ImageURL,
		CallbackURL:   m.CallbackURL,
		Data:          maps.Clone(m.Data),
		CorrelationID: m.CorrelationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Message rebuilds the message for a delivery attempt.
func (n *Notification) Message() Message {
	return Message{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Priority:       n.Priority,
		Title:          n.Title,
		Body:           n.Body,
		TemplateCode:   n.TemplateCode,
		Placeholders:   maps.Clone(n.Placeholders),
		Language:       n.Language,
		Recipient:      n.Recipient,
		ImageURL:       n.ImageURL,
		CallbackURL:    n.CallbackURL,
		Data:           maps.Clone(n.Data),
		CorrelationID:  n.CorrelationID,
	}
}

// IsRead reports whether the user has read the notification.
func (n *Notification) IsRead() bool { return n.ReadAt != nil }

func (n *Notification) clone() *Notification {
	c := *n
	c.Placeholders = maps.Clone(n.Placeholders)
	c.Data = maps.Clone(n.Data)
	if n.SentAt != nil {
		t := *n.SentAt
		c.SentAt = &t
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	return &c
}

// Page is one page of a user's notifications, newest first.
type Page struct {
	Items    []Notification `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}
