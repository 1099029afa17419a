package channel

import "errors"

var (
	// ErrInvalidConfig is returned when a channel is built from incomplete configuration.
	ErrInvalidConfig = errors.New("channel: invalid configuration")
	// ErrNoChannels is returned when no channel has credentials configured.
	ErrNoChannels = errors.New("channel: no channel configured")
)
