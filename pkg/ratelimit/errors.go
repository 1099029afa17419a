package ratelimit

import "errors"

var (
	// ErrInvalidLimit is returned when a policy limit is not positive.
	ErrInvalidLimit = errors.New("ratelimit: limit must be positive")
	// ErrInvalidWindow is returned when a policy window is not positive.
	ErrInvalidWindow = errors.New("ratelimit: window must be positive")
	// ErrKeyRequired is returned for an empty key or channel.
	ErrKeyRequired = errors.New("ratelimit: key and channel are required")
	// ErrStoreRequired is returned when a nil store is provided.
	ErrStoreRequired = errors.New("ratelimit: store is required")
	// ErrUnexpectedReply is returned when the store answers with an unexpected shape.
	ErrUnexpectedReply = errors.New("ratelimit: unexpected store reply")
)
