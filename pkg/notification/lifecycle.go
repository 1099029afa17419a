package notification

import (
	"context"
	"fmt"

	"github.com/slipverify/notifier/pkg/statemachine"
)

type lifecycleEvent string

func (e lifecycleEvent) Name() string { return string(e) }

const (
	eventClaim      lifecycleEvent = "claim"
	eventDeliver    lifecycleEvent = "deliver"
	eventRetry      lifecycleEvent = "retry"
	eventFail       lifecycleEvent = "fail"
	eventDeadLetter lifecycleEvent = "dead_letter"
	eventCancel     lifecycleEvent = "cancel"
)

// staleClaim lets a worker take over a processing record whose previous
// owner stopped updating it. data carries the staleness flag.
func staleClaim(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	stale, _ := data.(bool)
	return stale
}

var lifecycle = statemachine.MustNew(
	statemachine.WithTransition(StatusPending, StatusProcessing, eventClaim),
	statemachine.WithTransition(StatusRetrying, StatusProcessing, eventClaim),
	statemachine.WithTransition(StatusFailed, StatusProcessing, eventClaim),
	statemachine.WithTransition(StatusProcessing, StatusProcessing, eventClaim, staleClaim),

	statemachine.WithTransition(StatusProcessing, StatusSent, eventDeliver),
	statemachine.WithTransition(StatusProcessing, StatusRetrying, eventRetry),
	statemachine.WithTransition(StatusProcessing, StatusFailed, eventFail),

	statemachine.WithTransition(StatusPending, StatusFailed, eventDeadLetter),
	statemachine.WithTransition(StatusProcessing, StatusFailed, eventDeadLetter),
	statemachine.WithTransition(StatusRetrying, StatusFailed, eventDeadLetter),
	statemachine.WithTransition(StatusFailed, StatusFailed, eventDeadLetter),

	statemachine.WithTransition(StatusPending, StatusCancelled, eventCancel),
	statemachine.WithTransition(StatusRetrying, StatusCancelled, eventCancel),
	statemachine.WithTransition(StatusFailed, StatusCancelled, eventCancel),
)

// canTransition reports whether event moves a record out of status from.
func canTransition(from Status, event lifecycleEvent, data any) bool {
	return lifecycle.CanFire(context.Background(), from, event, data)
}

// transition checks event against the lifecycle. A refusal wraps
// ErrInvalidTransition around the reason the table gave.
func transition(from Status, event lifecycleEvent, data any) error {
	if _, err := lifecycle.Next(context.Background(), from, event, data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}
	return nil
}

// completionEvent maps the outcome of an attempt to its lifecycle event.
func completionEvent(s Status) lifecycleEvent {
	switch s {
	case StatusSent:
		return eventDeliver
	case StatusRetrying:
		return eventRetry
	case StatusFailed:
		return eventFail
	default:
		return lifecycleEvent("complete_" + string(s))
	}
}
