package broker

import "errors"

var (
	// ErrNotConnected is returned while no broker connection is available.
	ErrNotConnected = errors.New("broker: not connected")
	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("broker: closed")
	// ErrPublishNacked is returned when the server refuses to confirm a publish.
	ErrPublishNacked = errors.New("broker: publish not confirmed")
	// ErrUnknownExchange is returned when publishing to an exchange that was never declared.
	ErrUnknownExchange = errors.New("broker: unknown exchange")
	// ErrUnknownQueue is returned when consuming from a queue that was never declared.
	ErrUnknownQueue = errors.New("broker: unknown queue")
	// ErrUnroutable is returned by the memory broker when no queue is bound to the routing key.
	ErrUnroutable = errors.New("broker: message is unroutable")
	// ErrInvalidPrefetch is returned for a prefetch below one.
	ErrInvalidPrefetch = errors.New("broker: prefetch must be positive")
	// ErrNilHandler is returned when Consume is called without a handler.
	ErrNilHandler = errors.New("broker: handler is required")
	// ErrUnknownDriver is returned by New for an unsupported driver name.
	ErrUnknownDriver = errors.New("broker: unknown driver")
)
