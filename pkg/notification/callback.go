package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/logger"
)

// DeliveryReport is posted to a notification's callback URL once it is sent
// or has failed.
type DeliveryReport struct {
	NotificationID    uuid.UUID   `json:"notificationId"`
	UserID            uuid.UUID   `json:"userId"`
	Channel           ChannelType `json:"channel"`
	Status            Status      `json:"status"`
	ProviderMessageID string      `json:"providerMessageId,omitempty"`
	Error             string      `json:"error,omitempty"`
	RetryCount        int         `json:"retryCount"`
	SentAt            *time.Time  `json:"sentAt,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
}

func newDeliveryReport(n *Notification, at time.Time) DeliveryReport {
	return DeliveryReport{
		NotificationID:    n.ID,
		UserID:            n.UserID,
		Channel:           n.Channel,
		Status:            n.Status,
		ProviderMessageID: n.ProviderMessageID,
		Error:             n.ErrorMessage,
		RetryCount:        n.RetryCount,
		SentAt:            n.SentAt,
		Timestamp:         at,
	}
}

// sendCallback posts the report in the background. Wait blocks until it
// finishes.
func (s *Service) sendCallback(ctx context.Context, n *Notification) {
	if s.callbacks == nil || n.CallbackURL == "" {
		return
	}
	report := newDeliveryReport(n, s.now().UTC())
	url := n.CallbackURL

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callbackTimeout)
		defer cancel()

		if err := s.callbacks.Send(cbCtx, url, report); err != nil {
			s.logger.LogAttrs(cbCtx, slog.LevelWarn, "delivery callback failed",
				logger.NotificationID(report.NotificationID),
				slog.String("url", url),
				logger.Error(err),
			)
		}
	}()
}
