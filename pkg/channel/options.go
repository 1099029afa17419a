package channel

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/slipverify/notifier/pkg/logger"
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 30 * time.Second

type options struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a channel.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithEndpoint overrides the provider API URL.
func WithEndpoint(url string) Option {
	return func(o *options) {
		if url != "" {
			o.endpoint = url
		}
	}
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used to stamp sent times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(endpoint string, opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		endpoint:   endpoint,
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
