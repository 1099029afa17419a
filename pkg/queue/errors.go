package queue

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedEnvelope is returned when a message cannot be decoded into an Envelope.
	ErrMalformedEnvelope = errors.New("queue: malformed envelope")
	// ErrUnknownCategory is returned for an envelope category without a payload type.
	ErrUnknownCategory = errors.New("queue: unknown envelope category")
	// ErrMissingMessageID is returned when an envelope on the wire has no messageId.
	ErrMissingMessageID = errors.New("queue: envelope has no messageId")
	// ErrMissingPayload is returned when an envelope carries no payload for its category.
	ErrMissingPayload = errors.New("queue: envelope has no payload")
	// ErrPayloadMismatch is returned when a typed handler receives another payload type.
	ErrPayloadMismatch = errors.New("queue: unexpected payload type")
	// ErrHandlerTimeout is returned when a handler exceeds its deadline.
	ErrHandlerTimeout = errors.New("queue: handler timed out")
	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("queue: handler panicked")
	// ErrNilBroker is returned when a nil broker is provided.
	ErrNilBroker = errors.New("queue: broker is required")
	// ErrNilHandler is returned when a consumer is created without a handler.
	ErrNilHandler = errors.New("queue: handler is required")
	// ErrQueueRequired is returned when a consumer is created without a queue name.
	ErrQueueRequired = errors.New("queue: queue name is required")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. The consumer dead-letters the message
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type deferError struct {
	delay  time.Duration
	reason error
}

func (e *deferError) Error() string {
	return fmt.Sprintf("deferred for %s: %v", e.delay, e.reason)
}

func (e *deferError) Unwrap() error { return e.reason }

// Defer asks the consumer to put the message back after delay without
// counting a failed attempt, e.g. while a rate limit window is exhausted.
func Defer(delay time.Duration, reason error) error {
	if reason == nil {
		reason = errors.New("deferred")
	}
	return &deferError{delay: max(delay, 0), reason: reason}
}

// DeferDelay returns the delay requested with Defer.
func DeferDelay(err error) (time.Duration, bool) {
	var de *deferError
	if errors.As(err, &de) {
		return de.delay, true
	}
	return 0, false
}
