package notification

import (
	"fmt"
	"strings"

	"github.com/slipverify/notifier/pkg/broker"
)

// ChannelType identifies a delivery channel.
type ChannelType string

const (
	ChannelChatPush ChannelType = "chat_push"
	ChannelEmail    ChannelType = "email"
	ChannelPush     ChannelType = "push"
	ChannelSMS      ChannelType = "sms"
)

var channelAliases = map[string]ChannelType{
	"chat_push":   ChannelChatPush,
	"chatpush":    ChannelChatPush,
	"line":        ChannelChatPush,
	"line_notify": ChannelChatPush,
	"email":       ChannelEmail,
	"push":        ChannelPush,
	"fcm":         ChannelPush,
	"sms":         ChannelSMS,
}

// ParseChannelType parses a channel name case-insensitively. "LINE" is
// accepted for ChannelChatPush.
func ParseChannelType(s string) (ChannelType, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if ct, ok := channelAliases[name]; ok {
		return ct, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}

func (c ChannelType) String() string { return string(c) }

// RoutingKey is the main exchange routing key for queued notifications on c.
func (c ChannelType) RoutingKey() string {
	return broker.RoutingNotificationPrefix + string(c)
}

// Priority orders notifications. Providers map it to their own levels.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Status is the delivery state of a stored notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusRetrying   Status = "retrying"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string { return string(s) }

// Name makes Status usable as a lifecycle state.
func (s Status) Name() string { return string(s) }

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusCancelled
}


// FailureKind classifies an unsuccessful delivery.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureTransient   FailureKind = "transient"
	FailurePermanent   FailureKind = "permanent"
	FailureRateLimited FailureKind = "rate_limited"
)
