package callback

import (
	"log/slog"
	"net/http"
	"time"
)

// BreakerConfig configures the per-host circuit breakers. A zero
// FailureThreshold disables them.
type BreakerConfig struct {
	FailureThreshold int           `env:"CALLBACK_BREAKER_FAILURES" envDefault:"5"`
	SuccessThreshold int           `env:"CALLBACK_BREAKER_SUCCESSES" envDefault:"2"`
	RecoveryTimeout  time.Duration `env:"CALLBACK_BREAKER_RECOVERY" envDefault:"30s"`
}

// Config configures a Client from the environment.
type Config struct {
	Secret     string        `env:"CALLBACK_SECRET"`
	Timeout    time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"10s"`
	MaxRetries int           `env:"CALLBACK_MAX_RETRIES" envDefault:"3"`
	UserAgent  string        `env:"CALLBACK_USER_AGENT" envDefault:"slipverify-notifier/1.0"`
	Breaker    BreakerConfig
}

// Attempt describes one delivery attempt.
type Attempt struct {
	URL        string
	Number     int
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Option configures a Client.
type Option func(*Client)

// WithConfig applies every field of cfg.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		WithSecret(cfg.Secret)(c)
		WithTimeout(cfg.Timeout)(c)
		WithMaxRetries(cfg.MaxRetries)(c)
		WithUserAgent(cfg.UserAgent)(c)
		WithBreaker(cfg.Breaker)(c)
	}
}

// WithSecret enables request signing.
func WithSecret(secret string) Option {
	return func(c *Client) { c.secret = secret }
}

// WithTimeout bounds every single attempt. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
// Default 3; 0 disables retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(b Backoff) Option {
	return func(c *Client) {
		if b != nil {
			c.backoff = b
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBreaker configures the per-host circuit breakers.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) { c.breakerCfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnAttempt registers a hook called after every attempt.
func WithOnAttempt(fn func(Attempt)) Option {
	return func(c *Client) { c.onAttempt = fn }
}

// WithClock overrides the clock used for signatures and breakers.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
