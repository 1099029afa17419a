package queue

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NotificationPayload asks the notifier to deliver one notification.
// NotificationID is set when the notification record already exists.
type NotificationPayload struct {
	NotificationID *uuid.UUID        `json:"notificationId,omitempty"`
	UserID         uuid.UUID         `json:"userId"`
	Channel        string            `json:"channel"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	Priority       int               `json:"priority"`
	Data           map[string]any    `json:"data,omitempty"`
	TemplateCode   string            `json:"templateCode,omitempty"`
	Placeholders   map[string]string `json:"placeholders,omitempty"`
	Language       string            `json:"language,omitempty"`
	RecipientEmail string            `json:"recipientEmail,omitempty"`
	RecipientPhone string            `json:"recipientPhone,omitempty"`
	DeviceToken    string            `json:"deviceToken,omitempty"`
	ChatToken      string            `json:"chatToken,omitempty"`
	ImageURL       string            `json:"imageUrl,omitempty"`
	CallbackURL    string            `json:"callbackUrl,omitempty"`
}

func (p *NotificationPayload) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("notification payload: userId is required")
	}
	if p.Channel == "" {
		return errors.New("notification payload: channel is required")
	}
	return nil
}

// SlipProcessingPayload asks for OCR or verification of an uploaded slip.
type SlipProcessingPayload struct {
	SlipID         uuid.UUID `json:"slipId"`
	UserID         uuid.UUID `json:"userId"`
	ImageURL       string    `json:"imageUrl"`
	ProcessingType string    `json:"processingType"`
}

func (p *SlipProcessingPayload) validate() error {
	if p.SlipID == uuid.Nil {
		return errors.New("slip payload: slipId is required")
	}
	if p.ProcessingType == "" {
		p.ProcessingType = "OCR"
	}
	return nil
}

// ReportGenerationPayload asks for a report to be generated.
type ReportGenerationPayload struct {
	ReportID   uuid.UUID      `json:"reportId"`
	UserID     uuid.UUID      `json:"userId"`
	ReportType string         `json:"reportType"`
	StartDate  time.Time      `json:"startDate"`
	EndDate    time.Time      `json:"endDate"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (p *ReportGenerationPayload) validate() error {
	if p.ReportID == uuid.Nil {
		return errors.New("report payload: reportId is required")
	}
	if p.ReportType == "" {
		return errors.New("report payload: reportType is required")
	}
	return nil
}

// EmailPayload is a pre-rendered email without a notification record.
type EmailPayload struct {
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	IsHTML  bool     `json:"isHtml"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
}

func (p *EmailPayload) validate() error {
	if p.To == "" {
		return errors.New("email payload: to is required")
	}
	return nil
}

// PushPayload is a mobile push without a notification record.
type PushPayload struct {
	UserID      uuid.UUID         `json:"userId"`
	DeviceToken string            `json:"deviceToken,omitempty"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	ImageURL    string            `json:"imageUrl,omitempty"`
}

func (p *PushPayload) validate() error {
	if p.UserID == uuid.Nil && p.DeviceToken == "" {
		return errors.New("push payload: userId or deviceToken is required")
	}
	return nil
}
