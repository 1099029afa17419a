package broker

import (
	"context"
	"time"
)

// Message is the unit published to and delivered from the broker.
type Message struct {
	ID          string
	Body        []byte
	ContentType string
	Timestamp   time.Time
	Headers     map[string]any
}

// Delivery is a message received from a queue.
type Delivery struct {
	Message
	Queue       string
	Exchange    string
	RoutingKey  string
	Redelivered bool
}

// Outcome settles a delivery.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Requeue returns the message to the queue for redelivery.
	Requeue
	// Reject removes the message and routes it to the queue's dead-letter exchange.
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// HandlerFunc processes one delivery. It must always return an outcome.
type HandlerFunc func(ctx context.Context, d Delivery) Outcome

// Broker publishes and consumes messages.
type Broker interface {
	// Publish sends msg durably to exchange with routingKey. An empty exchange
	// routes directly to the queue named by routingKey.
	Publish(ctx context.Context, exchange, routingKey string, msg Message) error
	// Consume runs handler for deliveries from queue with at most prefetch
	// handlers in flight. It blocks until ctx is cancelled and all in-flight
	// handlers have settled their deliveries.
	Consume(ctx context.Context, queue string, prefetch int, handler HandlerFunc) error
	// Healthy reports whether the broker can currently publish.
	Healthy() bool
	Close() error
}

// Healthcheck adapts Healthy into a readiness probe.
func Healthcheck(b Broker) func(context.Context) error {
	return func(context.Context) error {
		if !b.Healthy() {
			return ErrNotConnected
		}
		return nil
	}
}
