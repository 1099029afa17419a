package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/template"
)

const (
	defaultSendTimeout     = 30 * time.Second
	defaultStaleAfter      = 5 * time.Minute
	defaultInFlightDelay   = 5 * time.Second
	defaultCallbackTimeout = time.Minute
	defaultPageSize        = 20
	maxPageSize            = 100
)

// Delivery outcomes reported to the Recorder.
const (
	OutcomeSent        = "sent"
	OutcomeFailed      = "failed"
	OutcomeRetrying    = "retrying"
	OutcomeRateLimited = "rate_limited"
)

// Service orchestrates notification delivery.
type Service struct {
	store     Storage
	channels  *Registry
	limiter   RateLimiter
	templates TemplateRenderer
	publisher Publisher
	callbacks CallbackSender
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	sendTimeout     time.Duration
	staleAfter      time.Duration
	inFlightDelay   time.Duration
	callbackTimeout time.Duration

	wg sync.WaitGroup
}

// NewService creates a service. Rate limiting, templates, publishing and
// callbacks are disabled unless configured with options.
func NewService(store Storage, channels *Registry, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrStorageRequired
	}
	if channels == nil {
		return nil, ErrRegistryRequired
	}
	s := &Service{
		store:           store,
		channels:        channels,
		logger:          logger.Nop(),
		now:             time.Now,
		sendTimeout:     defaultSendTimeout,
		staleAfter:      defaultStaleAfter,
		inFlightDelay:   defaultInFlightDelay,
		callbackTimeout: defaultCallbackTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("notification"))
	return s, nil
}

// SendNotification delivers msg immediately and records the outcome. A
// rate-limited message is not recorded and yields a rate-limited Result.
// The error is non-nil only when storage fails.
func (s *Service) SendNotification(ctx context.Context, msg Message) (*Result, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	msg = msg.clone()

	allowed, retryAfter := s.allow(ctx, msg.UserID.String(), msg.Channel)
	if !allowed {
		res := RateLimitedFailure(retryAfter)
		return &res, nil
	}

	n := newNotification(uuid.Nil, msg, StatusProcessing, s.now().UTC())
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return s.attempt(ctx, n, StatusFailed)
}

// QueueNotification records msg as pending, publishes it and returns the
// record id. When publishing fails the record stays pending for the sweeper
// and the id is still returned.
func (s *Service) QueueNotification(ctx context.Context, msg Message) (uuid.UUID, error) {
	if err := msg.validate(); err != nil {
		return uuid.Nil, err
	}
	n := newNotification(uuid.Nil, msg.clone(), StatusPending, s.now().UTC())
	if err := s.store.Create(ctx, n); err != nil {
		return uuid.Nil, fmt.Errorf("create notification: %w", err)
	}

	if err := s.publish(ctx, n); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "notification left pending, publish failed",
			logger.NotificationID(n.ID),
			logger.Channel(n.Channel.String()),
			logger.Error(err),
		)
	}
	return n.ID, nil
}

// GetNotification returns a record by id.
func (s *Service) GetNotification(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return s.store.Get(ctx, id)
}

// GetUserNotifications returns a page of the user's notifications, newest
// first. Pages start at 1.
func (s *Service) GetUserNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int) (*Page, error) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	items, total, err := s.store.ListByUser(ctx, userID, ListOptions{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// MarkAsRead records that the user read the notification.
func (s *Service) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkRead(ctx, id, s.now().UTC())
}

// CancelNotification stops a notification that has not been sent yet.
func (s *Service) CancelNotification(ctx context.Context, id uuid.UUID) error {
	return s.store.Cancel(ctx, id, s.now().UTC())
}

// RetryNotification re-attempts delivery of a record. A sent record yields
// a successful Result without sending again. Concurrent retries of the same
// record send at most once; the loser gets ErrInFlight.
func (s *Service) RetryNotification(ctx context.Context, id uuid.UUID) (*Result, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch n.Status {
	case StatusSent:
		return sentResult(n), nil
	case StatusCancelled:
		return nil, ErrCancelled
	}

	allowed, retryAfter := s.allow(ctx, n.UserID.String(), n.Channel)
	if !allowed {
		res := RateLimitedFailure(retryAfter)
		res.NotificationID = n.ID
		return &res, nil
	}

	now := s.now().UTC()
	claimed, err := s.store.Claim(ctx, id, now, now.Add(-s.staleAfter))
	if errors.Is(err, ErrAlreadySent) {
		if n, err = s.store.Get(ctx, id); err != nil {
			return nil, err
		}
		return sentResult(n), nil
	}
	if err != nil {
		return nil, err
	}
	return s.attempt(ctx, claimed, StatusFailed)
}

// Wait blocks until pending callbacks finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// attempt delivers a claimed record and stores the outcome. Transient
// failures leave the record in onTransient.
func (s *Service) attempt(ctx context.Context, n *Notification, onTransient Status) (*Result, error) {
	start := s.now()
	log := s.logger.With(
		logger.NotificationID(n.ID),
		logger.UserID(n.UserID),
		logger.Channel(n.Channel.String()),
	)

	msg := s.render(ctx, n.Message())
	res := s.dispatch(ctx, msg)
	res.NotificationID = n.ID

	c := Completion{At: s.now().UTC(), ErrorMessage: res.Error}
	switch {
	case res.Success:
		c.Status = StatusSent
		c.ProviderMessageID = res.ProviderMessageID
		if res.SentAt != nil {
			c.At = res.SentAt.UTC()
		}
	case res.Failure == FailurePermanent:
		c.Status = StatusFailed
	case res.Failure == FailureRateLimited:
		c.Status = onTransient
	default:
		c.Status = onTransient
		c.IncrementRetry = true
	}

	updated, err := s.store.Complete(context.WithoutCancel(ctx), n.ID, c)
	if err != nil {
		return &res, fmt.Errorf("complete notification: %w", err)
	}

	elapsed := s.now().Sub(start)
	s.observe(n.Channel, updated.Status, res.Failure, elapsed)
	if res.Success {
		log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
			slog.String("provider_message_id", res.ProviderMessageID),
			logger.Duration(elapsed),
		)
	} else {
		log.LogAttrs(ctx, slog.LevelWarn, "notification delivery failed",
			logger.Status(updated.Status),
			slog.String("failure", string(res.Failure)),
			slog.String("reason", res.Error),
			logger.RetryCount(updated.RetryCount),
		)
	}

	if updated.Status == StatusSent || updated.Status == StatusFailed {
		s.sendCallback(ctx, updated)
	}
	return &res, nil
}

// render replaces title and body with the rendered template. A missing
// template keeps the raw title and body.
func (s *Service) render(ctx context.Context, msg Message) Message {
	if msg.TemplateCode == "" || s.templates == nil {
		return renderRaw(msg)
	}
	subject, body, err := s.templates.RenderNotificationTemplate(ctx,
		msg.TemplateCode, msg.Channel.String(), msg.Placeholders, msg.Language)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, template.ErrTemplateNotFound) {
			level = slog.LevelDebug
		}
		s.logger.LogAttrs(ctx, level, "using raw notification content",
			slog.String("template_code", msg.TemplateCode),
			logger.Error(err),
		)
		return renderRaw(msg)
	}
	if subject != "" {
		msg.Title = subject
	}
	if body != "" {
		msg.Body = body
	}
	return msg
}

// renderRaw fills placeholders into content that did not come from a
// stored template.
func renderRaw(msg Message) Message {
	if len(msg.Placeholders) == 0 {
		return msg
	}
	msg.Title = template.Render(msg.Title, msg.Placeholders)
	msg.Body = template.Render(msg.Body, msg.Placeholders)
	return msg
}

// dispatch sends msg through its channel. It never panics.
func (s *Service) dispatch(ctx context.Context, msg Message) (res Result) {
	ch, ok := s.channels.Lookup(msg.Channel)
	if !ok {
		return PermanentFailure(fmt.Sprintf("%v: %s", ErrUnknownChannel, msg.Channel))
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			res = TransientFailure(fmt.Sprintf("channel %s panicked: %v", msg.Channel, r))
		}
	}()

	res = ch.Send(sendCtx, msg)
	switch {
	case res.Success && res.SentAt == nil:
		now := s.now().UTC()
		res.SentAt = &now
	case !res.Success && res.Failure == FailureNone:
		res.Failure = FailureTransient
	}
	return res
}

// allow applies the rate limit. Limiter errors admit the request.
func (s *Service) allow(ctx context.Context, key string, channel ChannelType) (bool, time.Duration) {
	if s.limiter == nil {
		return true, 0
	}
	res, err := s.limiter.Allow(ctx, key, channel.String())
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "rate limiter unavailable, admitting request",
			logger.Channel(channel.String()),
			logger.Error(err),
		)
		return true, 0
	}
	if res.Allowed {
		return true, 0
	}
	if s.recorder != nil {
		s.recorder.IncRateLimited(channel.String())
	}
	return false, res.RetryAfter
}

func (s *Service) observe(channel ChannelType, status Status, failure FailureKind, d time.Duration) {
	if s.recorder == nil {
		return
	}
	outcome := OutcomeFailed
	switch {
	case status == StatusSent:
		outcome = OutcomeSent
	case failure == FailureRateLimited:
		outcome = OutcomeRateLimited
	case status == StatusRetrying:
		outcome = OutcomeRetrying
	}
	s.recorder.ObserveDelivery(channel.String(), outcome, d)
}

func sentResult(n *Notification) *Result {
	return &Result{
		Success:           true,
		NotificationID:    n.ID,
		ProviderMessageID: n.ProviderMessageID,
		SentAt:            n.SentAt,
	}
}
