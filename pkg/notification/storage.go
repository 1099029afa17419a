package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Completion is the outcome recorded when a delivery attempt finishes.
type Completion struct {
	Status            Status
	ProviderMessageID string
	ErrorMessage      string
	// IncrementRetry adds one to the record's retry count.
	IncrementRetry bool
	At             time.Time
}

// ListOptions paginates ListByUser.
type ListOptions struct {
	Limit  int
	Offset int
}

// Storage persists notifications and enforces status transitions. Every
// method that changes status must be atomic per record.
type Storage interface {
	// Create stores a new record. It returns ErrNotificationExists when the
	// id is taken.
	Create(ctx context.Context, n *Notification) error

	Get(ctx context.Context, id uuid.UUID) (*Notification, error)

	// ListByUser returns a page of the user's records, newest first, and
	// the total number of records the user has.
	ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, int, error)

	// Claim moves a pending, retrying or failed record to processing. A
	// processing record last updated before staleBefore is reclaimed. It
	// returns ErrAlreadySent, ErrCancelled or ErrInFlight when the record
	// cannot be claimed.
	Claim(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (*Notification, error)

	// Complete records the outcome of an attempt. Only processing records
	// can be completed.
	Complete(ctx context.Context, id uuid.UUID, c Completion) (*Notification, error)

	// MarkFailed moves any non-terminal record to failed.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Notification, error)

	// MarkRead sets the read time once.
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error

	// Cancel moves a pending, retrying or failed record to cancelled.
	// Cancelling a cancelled record is a no-op.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListStale returns up to limit pending records last updated before
	// olderThan, oldest first.
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]Notification, error)

	// Touch updates the modification time of a pending record.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// claimError explains why a record in status s cannot be claimed.
func claimError(s Status) error {
	switch s {
	case StatusSent:
		return ErrAlreadySent
	case StatusCancelled:
		return ErrCancelled
	case StatusProcessing:
		return ErrInFlight
	default:
		return ErrInvalidTransition
	}
}

// cancelError explains why a record in status s cannot be cancelled.
func cancelError(s Status) error {
	switch s {
	case StatusSent:
		return ErrAlreadySent
	case StatusProcessing:
		return ErrInFlight
	default:
		return ErrInvalidTransition
	}
}

// validCompletion reports whether s is a legal outcome of a delivery attempt.
func validCompletion(s Status) bool {
	return canTransition(StatusProcessing, completionEvent(s), nil)
}
