package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/broker"
)

// Message headers set on every published envelope.
const (
	HeaderRetryCount  = "x-retry-count"
	HeaderCategory    = "x-category"
	HeaderDeathReason = "x-death-reason"
)

// Publisher encodes envelopes and publishes them durably.
type Publisher struct {
	broker   broker.Broker
	exchange string
	now      func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithExchange sets the exchange used by Publish. Defaults to broker.MainExchange.
func WithExchange(name string) PublisherOption {
	return func(p *Publisher) { p.exchange = name }
}

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a Publisher on b.
func NewPublisher(b broker.Broker, opts ...PublisherOption) (*Publisher, error) {
	if b == nil {
		return nil, ErrNilBroker
	}
	p := &Publisher{
		broker:   b,
		exchange: broker.MainExchange,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish sends env to the configured exchange with routingKey. A missing
// message id or creation time is filled in on env before encoding, and a
// missing correlation id is taken from ctx.
func (p *Publisher) Publish(ctx context.Context, routingKey string, env *Envelope) error {
	return p.PublishTo(ctx, p.exchange, routingKey, env, nil)
}

// PublishTo sends env to an explicit exchange with extra headers.
func (p *Publisher) PublishTo(ctx context.Context, exchange, routingKey string, env *Envelope, headers map[string]any) error {
	if env == nil {
		return ErrMissingPayload
	}
	if env.MessageID == uuid.Nil {
		env.MessageID = uuid.New()
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = p.now().UTC()
	}
	if env.CorrelationID == "" {
		env.CorrelationID = CorrelationIDFrom(ctx)
	}

	body, err := Encode(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	h := make(map[string]any, len(headers)+2)
	for k, v := range headers {
		h[k] = v
	}
	h[HeaderRetryCount] = int64(env.RetryCount)
	h[HeaderCategory] = string(env.Category)

	return p.broker.Publish(ctx, exchange, routingKey, broker.Message{
		ID:          env.MessageID.String(),
		Body:        body,
		ContentType: "application/json",
		Timestamp:   env.CreatedAt,
		Headers:     h,
	})
}
