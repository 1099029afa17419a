package queue

import (
	"context"
	"log/slog"
	"time"
)

// DeadLetterHook is called once for every envelope the consumer dead-letters
// after decoding it, with the error that caused it.
type DeadLetterHook func(ctx context.Context, env *Envelope, reason error)

// Observer receives the final outcome of every delivery.
type Observer interface {
	ObserveMessage(queue string, outcome string)
}

// Delivery outcomes reported to the Observer.
const (
	OutcomeAcked        = "acked"
	OutcomeRetried      = "retried"
	OutcomeDeferred     = "deferred"
	OutcomeDeadLettered = "dead_lettered"
	OutcomePoison       = "poison"
	OutcomeRequeued     = "requeued"
)

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithCategory sets the category assumed for envelopes that omit it.
func WithCategory(c Category) ConsumerOption {
	return func(cs *Consumer) { cs.category = c }
}

// WithMaxRetries sets the retry ceiling. A message whose retry count reaches
// n is dead-lettered.
func WithMaxRetries(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithPrefetch caps the number of messages handled concurrently.
func WithPrefetch(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithHandlerTimeout bounds a single handler call. Expiry counts as a
// transient failure.
func WithHandlerTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.handlerTimeout = d
		}
	}
}

// WithBackoff sets the delay before republishing a failed message.
func WithBackoff(b Backoff) ConsumerOption {
	return func(c *Consumer) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithMaxDeferDelay caps the delay honoured for deferred messages.
func WithMaxDeferDelay(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d >= 0 {
			c.maxDefer = d
		}
	}
}

// WithDeadLetterExchange sets the exchange dead-lettered messages are published to.
func WithDeadLetterExchange(name string) ConsumerOption {
	return func(c *Consumer) {
		if name != "" {
			c.deadLetterExchange = name
		}
	}
}

// WithDeadLetterHook registers a callback for dead-lettered envelopes.
func WithDeadLetterHook(h DeadLetterHook) ConsumerOption {
	return func(c *Consumer) { c.onDeadLetter = h }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) ConsumerOption {
	return func(c *Consumer) { c.observer = o }
}

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}
