package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slipverify/notifier/pkg/broker"
	"github.com/slipverify/notifier/pkg/logger"
)

// Consumer runs one Handler over one queue.
type Consumer struct {
	broker    broker.Broker
	publisher *Publisher
	queue     string
	handler   Handler

	category           Category
	maxRetries         int
	prefetch           int
	handlerTimeout     time.Duration
	backoff            Backoff
	maxDefer           time.Duration
	deadLetterExchange string
	onDeadLetter       DeadLetterHook
	observer           Observer
	logger             *slog.Logger
}

// NewConsumer creates a consumer for queue.
func NewConsumer(b broker.Broker, queue string, h Handler, opts ...ConsumerOption) (*Consumer, error) {
	if b == nil {
		return nil, ErrNilBroker
	}
	if h == nil {
		return nil, ErrNilHandler
	}
	if queue == "" {
		return nil, ErrQueueRequired
	}

	publisher, err := NewPublisher(b)
	if err != nil {
		return nil, err
	}

	c := &Consumer{
		broker:             b,
		publisher:          publisher,
		queue:              queue,
		handler:            h,
		category:           CategoryNotification,
		maxRetries:         3,
		prefetch:           10,
		handlerTimeout:     time.Minute,
		backoff:            ExponentialBackoff(time.Second, 30*time.Second),
		maxDefer:           30 * time.Second,
		deadLetterExchange: broker.DeadLetterExchange,
		logger:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("consumer"), logger.Queue(queue))
	return c, nil
}

// Queue returns the consumed queue name.
func (c *Consumer) Queue() string { return c.queue }

// Run returns a function suitable for errgroup that consumes until ctx is
// cancelled and in-flight messages are settled.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		c.logger.InfoContext(ctx, "consumer starting",
			slog.Int("prefetch", c.prefetch),
			slog.Int("max_retries", c.maxRetries),
		)
		err := c.broker.Consume(ctx, c.queue, c.prefetch, func(hctx context.Context, d broker.Delivery) broker.Outcome {
			return c.process(ctx, hctx, d)
		})
		c.logger.InfoContext(ctx, "consumer stopped")
		return err
	}
}

// process decides the outcome of one delivery. shutdown is the consumer
// lifetime context and only shortens delays; ctx outlives shutdown so that
// in-flight work can finish.
func (c *Consumer) process(shutdown, ctx context.Context, d broker.Delivery) broker.Outcome {
	start := time.Now()

	env, err := Decode(d.Body, c.category)
	if err != nil {
		c.logger.ErrorContext(ctx, "poison message dead-lettered",
			logger.MessageID(d.ID),
			logger.RoutingKey(d.RoutingKey),
			logger.Error(err),
		)
		c.observe(OutcomePoison)
		return broker.Reject
	}

	log := c.logger.With(
		logger.MessageID(env.MessageID),
		logger.CorrelationID(env.CorrelationID),
		logger.RetryCount(env.RetryCount),
	)

	ctx = WithCorrelationID(ctx, env.CorrelationID)
	err = c.invoke(ctx, env)
	switch {
	case err == nil:
		log.DebugContext(ctx, "message handled", logger.Duration(time.Since(start)))
		c.observe(OutcomeAcked)
		return broker.Ack

	case IsPermanent(err):
		log.WarnContext(ctx, "permanent failure", logger.Error(err))
		return c.deadLetter(ctx, env, err, log)
	}

	if delay, ok := DeferDelay(err); ok {
		delay = min(delay, c.maxDefer)
		log.InfoContext(ctx, "message deferred", slog.Duration("delay", delay), logger.Error(err))
		wait(shutdown, delay)
		if perr := c.republish(ctx, env); perr != nil {
			log.ErrorContext(ctx, "failed to republish deferred message, requeueing", logger.Error(perr))
			c.observe(OutcomeRequeued)
			return broker.Requeue
		}
		c.observe(OutcomeDeferred)
		return broker.Ack
	}

	next := env.Clone()
	next.RetryCount = env.RetryCount + 1
	if next.RetryCount >= c.maxRetries {
		log.WarnContext(ctx, "retries exhausted",
			slog.Int("max_retries", c.maxRetries),
			logger.Error(err),
		)
		return c.deadLetter(ctx, next, err, log)
	}

	delay := c.backoff(next.RetryCount)
	log.WarnContext(ctx, "handler failed, retrying",
		slog.Int("next_retry", next.RetryCount),
		slog.Duration("delay", delay),
		logger.Error(err),
	)
	wait(shutdown, delay)
	if perr := c.republish(ctx, next); perr != nil {
		log.ErrorContext(ctx, "failed to republish message, requeueing", logger.Error(perr))
		c.observe(OutcomeRequeued)
		return broker.Requeue
	}
	c.observe(OutcomeRetried)
	return broker.Ack
}

// invoke runs the handler under the handler timeout and turns panics and
// overruns into errors. A handler that ignores its context keeps running in
// the background but no longer holds the delivery.
func (c *Consumer) invoke(ctx context.Context, env *Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorContext(ctx, "handler panicked",
					logger.MessageID(env.MessageID),
					slog.Any("panic", r),
				)
				done <- fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
		}()
		done <- c.handler.Handle(ctx, env)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return errors.Join(ErrHandlerTimeout, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrHandlerTimeout, c.handlerTimeout)
	}
}

func (c *Consumer) republish(ctx context.Context, env *Envelope) error {
	return c.publisher.PublishTo(ctx, "", c.queue, env, nil)
}

// deadLetter publishes env to the dead-letter exchange and acknowledges the
// original. If that publish fails the delivery is rejected so the broker
// dead-letters it instead. Either way the hook runs once.
func (c *Consumer) deadLetter(ctx context.Context, env *Envelope, reason error, log *slog.Logger) broker.Outcome {
	outcome := broker.Ack
	err := c.publisher.PublishTo(ctx, c.deadLetterExchange, c.queue, env, map[string]any{
		HeaderDeathReason: reason.Error(),
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to publish to dead-letter exchange, rejecting", logger.Error(err))
		outcome = broker.Reject
	}

	log.WarnContext(ctx, "message dead-lettered", logger.Error(reason))
	c.observe(OutcomeDeadLettered)
	if c.onDeadLetter != nil {
		c.onDeadLetter(ctx, env, reason)
	}
	return outcome
}

func (c *Consumer) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveMessage(c.queue, outcome)
	}
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
