package notification

import "errors"

var (
	// ErrNotificationNotFound is returned when no record has the requested id.
	ErrNotificationNotFound = errors.New("notification: not found")
	// ErrNotificationExists is returned when creating a record whose id is taken.
	ErrNotificationExists = errors.New("notification: already exists")
	// ErrIDRequired is returned when storing a record without an id.
	ErrIDRequired = errors.New("notification: id is required")
	// ErrAlreadySent is returned when an operation needs a record that is not sent yet.
	ErrAlreadySent = errors.New("notification: already sent")
	// ErrCancelled is returned for operations on a cancelled record.
	ErrCancelled = errors.New("notification: cancelled")
	// ErrInFlight is returned when another worker is delivering the record.
	ErrInFlight = errors.New("notification: delivery in progress")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("notification: invalid status transition")

	// ErrUnknownChannel is returned for a channel type without a registered channel.
	ErrUnknownChannel = errors.New("notification: unknown channel")
	// ErrUserRequired is returned for a message without a user id.
	ErrUserRequired = errors.New("notification: user id is required")
	// ErrChannelRequired is returned for a message without a channel.
	ErrChannelRequired = errors.New("notification: channel is required")
	// ErrEmptyContent is returned for a message without title, body or template.
	ErrEmptyContent = errors.New("notification: title, body or template code is required")
	// ErrRateLimited is returned when a delivery is postponed by the rate limiter.
	ErrRateLimited = errors.New("notification: rate limit exceeded")
	// ErrDeliveryFailed wraps a transient channel failure.
	ErrDeliveryFailed = errors.New("notification: delivery failed")

	// ErrStorageRequired is returned when a service is created without storage.
	ErrStorageRequired = errors.New("notification: storage is required")
	// ErrRegistryRequired is returned when a service is created without a channel registry.
	ErrRegistryRequired = errors.New("notification: channel registry is required")
)
