package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/queue"
)

var errNoPublisher = errors.New("notification: publisher is not configured")

// HandleEnvelope processes a notification envelope from the notifications
// queue. It is idempotent: envelopes for sent or cancelled records are
// acknowledged without sending.
func (s *Service) HandleEnvelope(ctx context.Context, env *queue.Envelope) error {
	return queue.NewHandler(s.handleNotification).Handle(ctx, env)
}

// HandleEmail sends a pre-rendered email from the email queue. No record is
// stored.
func (s *Service) HandleEmail(ctx context.Context, env *queue.Envelope) error {
	return queue.NewHandler(s.handleEmail).Handle(ctx, env)
}

// HandlePush sends a mobile push from the push queue. No record is stored.
func (s *Service) HandlePush(ctx context.Context, env *queue.Envelope) error {
	return queue.NewHandler(s.handlePush).Handle(ctx, env)
}

// OnDeadLetter marks the record of a dead-lettered notification envelope as
// failed. It matches queue.DeadLetterHook.
func (s *Service) OnDeadLetter(ctx context.Context, env *queue.Envelope, reason error) {
	if env == nil || env.Notification == nil {
		return
	}
	id := recordID(env)
	log := s.logger.With(logger.NotificationID(id), logger.MessageID(env.MessageID))

	current, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotificationNotFound) {
			log.LogAttrs(ctx, slog.LevelError, "load dead-lettered notification", logger.Error(err))
		}
		return
	}
	if current.Status == StatusFailed || current.Status.IsTerminal() {
		return
	}

	msg := "dead-lettered"
	if reason != nil {
		msg = reason.Error()
	}
	n, err := s.store.MarkFailed(ctx, id, msg, s.now().UTC())
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "mark dead-lettered notification failed", logger.Error(err))
		return
	}
	log.LogAttrs(ctx, slog.LevelWarn, "notification dead-lettered",
		logger.RetryCount(env.RetryCount),
		slog.String("reason", msg),
	)
	s.sendCallback(ctx, n)
}

func (s *Service) handleNotification(ctx context.Context, env *queue.Envelope, p *queue.NotificationPayload) error {
	msg, err := messageFromPayload(p)
	if err != nil {
		return queue.Permanent(err)
	}
	if msg.CorrelationID == "" {
		msg.CorrelationID = env.CorrelationID
	}

	id := recordID(env)
	if id == uuid.Nil {
		return queue.Permanent(queue.ErrMissingMessageID)
	}
	n, err := s.loadOrCreate(ctx, id, p.NotificationID != nil, msg)
	if err != nil {
		return err
	}
	if n.Status.IsTerminal() {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipping finished notification",
			logger.NotificationID(n.ID),
			logger.Status(n.Status),
		)
		return nil
	}

	if allowed, retryAfter := s.allow(ctx, n.UserID.String(), n.Channel); !allowed {
		return queue.Defer(retryAfter, ErrRateLimited)
	}

	now := s.now().UTC()
	claimed, err := s.store.Claim(ctx, n.ID, now, now.Add(-s.staleAfter))
	switch {
	case errors.Is(err, ErrAlreadySent), errors.Is(err, ErrCancelled):
		return nil
	case errors.Is(err, ErrInFlight):
		return queue.Defer(s.inFlightDelay, err)
	case err != nil:
		return fmt.Errorf("claim notification: %w", err)
	}

	res, err := s.attempt(ctx, claimed, StatusRetrying)
	if err != nil {
		return err
	}
	return resultError(*res)
}

// loadOrCreate returns the record for id. Envelopes published without a
// record get one keyed by the message id, so redeliveries share it.
func (s *Service) loadOrCreate(ctx context.Context, id uuid.UUID, mustExist bool, msg Message) (*Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, ErrNotificationNotFound) {
		return nil, fmt.Errorf("load notification: %w", err)
	}
	if mustExist {
		return nil, queue.Permanent(err)
	}
	if err := msg.validate(); err != nil {
		return nil, queue.Permanent(err)
	}

	n = newNotification(id, msg, StatusPending, s.now().UTC())
	err = s.store.Create(ctx, n)
	if errors.Is(err, ErrNotificationExists) {
		return s.store.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *Service) handleEmail(ctx context.Context, env *queue.Envelope, p *queue.EmailPayload) error {
	msg := Message{
		Channel:       ChannelEmail,
		Priority:      PriorityNormal,
		Title:         p.Subject,
		Body:          p.Body,
		Recipient:     Recipient{Email: p.To},
		CorrelationID: env.CorrelationID,
		Data: map[string]any{
			"isHtml": p.IsHTML,
			"cc":     p.Cc,
			"bcc":    p.Bcc,
		},
	}
	return s.sendDirect(ctx, p.To, msg)
}

func (s *Service) handlePush(ctx context.Context, env *queue.Envelope, p *queue.PushPayload) error {
	data := make(map[string]any, len(p.Data))
	for k, v := range p.Data {
		data[k] = v
	}
	msg := Message{
		UserID:        p.UserID,
		Channel:       ChannelPush,
		Priority:      PriorityNormal,
		Title:         p.Title,
		Body:          p.Body,
		Recipient:     Recipient{DeviceToken: p.DeviceToken},
		ImageURL:      p.ImageURL,
		Data:          data,
		CorrelationID: env.CorrelationID,
	}
	key := p.DeviceToken
	if p.UserID != uuid.Nil {
		key = p.UserID.String()
	}
	return s.sendDirect(ctx, key, msg)
}

// sendDirect delivers a message that has no stored record.
func (s *Service) sendDirect(ctx context.Context, key string, msg Message) error {
	if allowed, retryAfter := s.allow(ctx, key, msg.Channel); !allowed {
		return queue.Defer(retryAfter, ErrRateLimited)
	}
	start := s.now()
	res := s.dispatch(ctx, msg)

	status := StatusSent
	if !res.Success {
		status = StatusRetrying
		if res.Failure == FailurePermanent {
			status = StatusFailed
		}
	}
	s.observe(msg.Channel, status, res.Failure, s.now().Sub(start))
	return resultError(res)
}

// resultError maps a delivery result to the consumer's error contract.
func resultError(res Result) error {
	switch {
	case res.Success:
		return nil
	case res.Failure == FailurePermanent:
		return queue.Permanent(fmt.Errorf("%w: %s", ErrDeliveryFailed, res.Error))
	case res.Failure == FailureRateLimited:
		return queue.Defer(res.RetryAfter, ErrRateLimited)
	default:
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, res.Error)
	}
}

func recordID(env *queue.Envelope) uuid.UUID {
	if env.Notification != nil && env.Notification.NotificationID != nil {
		return *env.Notification.NotificationID
	}
	return env.MessageID
}

func (s *Service) publish(ctx context.Context, n *Notification) error {
	if s.publisher == nil {
		return errNoPublisher
	}
	env := queue.NewNotificationEnvelope(payloadFromNotification(n))
	env.CorrelationID = n.CorrelationID
	return s.publisher.Publish(ctx, n.Channel.RoutingKey(), env)
}

func payloadFromNotification(n *Notification) queue.NotificationPayload {
	id := n.ID
	return queue.NotificationPayload{
		NotificationID: &id,
		UserID:         n.UserID,
		Channel:        n.Channel.String(),
		Title:          n.Title,
		Message:        n.Body,
		Priority:       int(n.Priority),
		Data:           n.Data,
		TemplateCode:   n.TemplateCode,
		Placeholders:   n.Placeholders,
		Language:       n.Language,
		RecipientEmail: n.Recipient.Email,
		RecipientPhone: n.Recipient.Phone,
		DeviceToken:    n.Recipient.DeviceToken,
		ChatToken:      n.Recipient.ChatToken,
		ImageURL:       n.ImageURL,
		CallbackURL:    n.CallbackURL,
	}
}

func messageFromPayload(p *queue.NotificationPayload) (Message, error) {
	ct, err := ParseChannelType(p.Channel)
	if err != nil {
		return Message{}, err
	}
	return Message{
		UserID:       p.UserID,
		Channel:      ct,
		Priority:     Priority(p.Priority),
		Title:        p.Title,
		Body:         p.Message,
		TemplateCode: p.TemplateCode,
		Placeholders: p.Placeholders,
		Language:     p.Language,
		Recipient: Recipient{
			Email:       p.RecipientEmail,
			Phone:       p.RecipientPhone,
			DeviceToken: p.DeviceToken,
			ChatToken:   p.ChatToken,
		},
		ImageURL:    p.ImageURL,
		CallbackURL: p.CallbackURL,
		Data:        p.Data,
	}, nil
}
