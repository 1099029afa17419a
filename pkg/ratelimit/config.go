package ratelimit

import "time"

// Store backends accepted by Config.Store.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds per-channel policies. Channel names match the notification
// channel identifiers.
type Config struct {
	Store string `env:"RATE_LIMIT_STORE" envDefault:"redis"` // Store selects "redis" or "memory".

	ChatPushLimit  int           `env:"RATE_LIMIT_CHAT_PUSH_LIMIT" envDefault:"1000"`
	ChatPushWindow time.Duration `env:"RATE_LIMIT_CHAT_PUSH_WINDOW" envDefault:"1h"`
	EmailLimit     int           `env:"RATE_LIMIT_EMAIL_LIMIT" envDefault:"100"`
	EmailWindow    time.Duration `env:"RATE_LIMIT_EMAIL_WINDOW" envDefault:"1m"`
	SMSLimit       int           `env:"RATE_LIMIT_SMS_LIMIT" envDefault:"10"`
	SMSWindow      time.Duration `env:"RATE_LIMIT_SMS_WINDOW" envDefault:"1m"`
	PushLimit      int           `env:"RATE_LIMIT_PUSH_LIMIT" envDefault:"500"`
	PushWindow     time.Duration `env:"RATE_LIMIT_PUSH_WINDOW" envDefault:"1m"`

	DefaultLimit  int           `env:"RATE_LIMIT_DEFAULT_LIMIT" envDefault:"100"`
	DefaultWindow time.Duration `env:"RATE_LIMIT_DEFAULT_WINDOW" envDefault:"1m"`
}

// Options turns the config into limiter options.
func (c Config) Options() []Option {
	return []Option{
		WithPolicy("chat_push", Policy{Limit: c.ChatPushLimit, Window: c.ChatPushWindow}),
		WithPolicy("email", Policy{Limit: c.EmailLimit, Window: c.EmailWindow}),
		WithPolicy("sms", Policy{Limit: c.SMSLimit, Window: c.SMSWindow}),
		WithPolicy("push", Policy{Limit: c.PushLimit, Window: c.PushWindow}),
		WithDefaultPolicy(Policy{Limit: c.DefaultLimit, Window: c.DefaultWindow}),
	}
}
