package main

import (
	"time"

	"github.com/slipverify/notifier/pkg/broker"
	"github.com/slipverify/notifier/pkg/callback"
	"github.com/slipverify/notifier/pkg/channel"
	"github.com/slipverify/notifier/pkg/httpserver"
	"github.com/slipverify/notifier/pkg/ratelimit"
	"github.com/slipverify/notifier/pkg/redis"
)

// Storage backends.
const (
	storagePostgres = "postgres"
	storageMongo    = "mongo"
	storageMemory   = "memory"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Service  string `env:"APP_SERVICE" envDefault:"notifier"`
	LogLevel string `env:"LOG_LEVEL"`
	Storage  string `env:"NOTIFICATION_STORAGE" envDefault:"postgres"`
	Language string `env:"TEMPLATE_DEFAULT_LANGUAGE" envDefault:"en"`
	SeedFile string `env:"TEMPLATE_SEED_FILE"`

	SendTimeout     time.Duration `env:"NOTIFICATION_SEND_TIMEOUT" envDefault:"30s"`
	StaleAfter      time.Duration `env:"NOTIFICATION_STALE_AFTER" envDefault:"5m"`
	InFlightDelay   time.Duration `env:"NOTIFICATION_IN_FLIGHT_DELAY" envDefault:"5s"`
	CallbackTimeout time.Duration `env:"NOTIFICATION_CALLBACK_TIMEOUT" envDefault:"1m"`

	HTTP      httpserver.Config
	Broker    broker.Config
	Redis     redis.Config
	RateLimit ratelimit.Config
	Channels  channel.Config
	Callback  callback.Config
	Queue     queueConfig
	Sweeper   sweeperConfig
	Jobs      jobsConfig
}

type queueConfig struct {
	MaxRetries     int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	Prefetch       int           `env:"QUEUE_PREFETCH" envDefault:"10"`
	HandlerTimeout time.Duration `env:"QUEUE_HANDLER_TIMEOUT" envDefault:"2m"`
	MaxBackoff     time.Duration `env:"QUEUE_MAX_BACKOFF" envDefault:"5m"`
}

type sweeperConfig struct {
	Enabled   bool          `env:"SWEEPER_ENABLED" envDefault:"true"`
	Interval  time.Duration `env:"SWEEPER_INTERVAL" envDefault:"1m"`
	Age       time.Duration `env:"SWEEPER_AGE" envDefault:"2m"`
	BatchSize int           `env:"SWEEPER_BATCH_SIZE" envDefault:"100"`
}

type jobsConfig struct {
	Enabled        bool   `env:"JOBS_ENABLED" envDefault:"true"`
	NoticeChannel  string `env:"JOBS_NOTICE_CHANNEL"`
	SlipTemplate   string `env:"JOBS_SLIP_NOTICE_TEMPLATE" envDefault:"slip_processed"`
	ReportTemplate string `env:"JOBS_REPORT_NOTICE_TEMPLATE" envDefault:"report_ready"`
}
