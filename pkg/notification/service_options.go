package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/slipverify/notifier/pkg/queue"
	"github.com/slipverify/notifier/pkg/ratelimit"
)

// RateLimiter admits or denies a delivery for a key on a channel.
type RateLimiter interface {
	Allow(ctx context.Context, key, channel string) (*ratelimit.Result, error)
}

// TemplateRenderer renders a stored template into a subject and body.
type TemplateRenderer interface {
	RenderNotificationTemplate(ctx context.Context, code, channel string, placeholders map[string]string, language string) (string, string, error)
}

// Publisher publishes envelopes to the main exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, env *queue.Envelope) error
}

// CallbackSender posts delivery reports to caller supplied URLs.
type CallbackSender interface {
	Send(ctx context.Context, url string, payload any) error
}

// Recorder receives delivery metrics.
type Recorder interface {
	ObserveDelivery(channel, outcome string, d time.Duration)
	IncRateLimited(channel string)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRateLimiter enables rate limiting.
func WithRateLimiter(l RateLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithTemplates enables template rendering.
func WithTemplates(r TemplateRenderer) ServiceOption {
	return func(s *Service) { s.templates = r }
}

// WithPublisher sets the publisher used by QueueNotification and the sweeper.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithCallbacks enables delivery report callbacks.
func WithCallbacks(c CallbackSender) ServiceOption {
	return func(s *Service) { s.callbacks = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSendTimeout bounds a single channel send. Defaults to 30s.
func WithSendTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithStaleAfter sets how long a processing record may stay untouched
// before another worker may reclaim it. Defaults to 5m.
func WithStaleAfter(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithInFlightDelay sets how long a queued delivery waits when another
// worker holds the record. Defaults to 5s.
func WithInFlightDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.inFlightDelay = d
		}
	}
}

// WithCallbackTimeout bounds a callback delivery including its retries.
// Defaults to 1m.
func WithCallbackTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.callbackTimeout = d
		}
	}
}
