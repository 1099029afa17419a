package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/slipverify/notifier/pkg/broker"
	"github.com/slipverify/notifier/pkg/callback"
	"github.com/slipverify/notifier/pkg/channel"
	"github.com/slipverify/notifier/pkg/config"
	"github.com/slipverify/notifier/pkg/httpserver"
	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/metrics"
	"github.com/slipverify/notifier/pkg/mongo"
	"github.com/slipverify/notifier/pkg/notification"
	"github.com/slipverify/notifier/pkg/pg"
	"github.com/slipverify/notifier/pkg/queue"
	"github.com/slipverify/notifier/pkg/ratelimit"
	"github.com/slipverify/notifier/pkg/redis"
	"github.com/slipverify/notifier/pkg/template"
)

// app holds the wired dependencies of one process.
type app struct {
	cfg     appConfig
	log     *slog.Logger
	pool    *pgxpool.Pool
	redis   *goredis.Client
	broker  broker.Broker
	metrics *metrics.Metrics
	service *notification.Service
	checks  []httpserver.RouterOption
	closers []func() error
}

func loadConfig() (appConfig, *slog.Logger, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return cfg, nil, err
	}
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextValue("correlation_id", queue.CorrelationIDKey{}),
	)
	logger.SetAsDefault(log)
	return cfg, log, nil
}

// newApp connects every backing service and builds the notification
// service. Close releases everything newApp opened.
func newApp(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.NewDefault()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, templates, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.SeedFile != "" {
		n, err := template.SeedFile(ctx, templates, cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("templates: %w", err)
		}
		log.InfoContext(ctx, "templates seeded", slog.String("file", cfg.SeedFile), slog.Int("count", n))
	}

	limiter, err := a.openLimiter(ctx)
	if err != nil {
		return nil, err
	}

	a.broker, err = broker.New(ctx, cfg.Broker, log)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	a.closers = append(a.closers, a.broker.Close)
	a.checks = append(a.checks, httpserver.WithCheck("broker", broker.Healthcheck(a.broker)))

	publisher, err := queue.NewPublisher(a.broker)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	channels, err := channel.FromConfig(ctx, cfg.Channels, log)
	if err != nil {
		return nil, fmt.Errorf("channels: %w", err)
	}

	engine, err := template.NewEngine(templates,
		template.WithDefaultLanguage(cfg.Language),
		template.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	a.service, err = notification.NewService(store, notification.NewRegistry(channels...),
		notification.WithRateLimiter(limiter),
		notification.WithTemplates(engine),
		notification.WithPublisher(publisher),
		notification.WithCallbacks(callback.NewClient(callback.WithConfig(cfg.Callback), callback.WithLogger(log))),
		notification.WithRecorder(a.metrics),
		notification.WithLogger(log),
		notification.WithSendTimeout(cfg.SendTimeout),
		notification.WithStaleAfter(cfg.StaleAfter),
		notification.WithInFlightDelay(cfg.InFlightDelay),
		notification.WithCallbackTimeout(cfg.CallbackTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}
	return a, nil
}

func (a *app) openStorage(ctx context.Context) (notification.Storage, template.Store, error) {
	switch strings.ToLower(a.cfg.Storage) {
	case storageMemory:
		a.log.WarnContext(ctx, "notifications are kept in memory and lost on restart")
		defaults, err := template.Defaults()
		if err != nil {
			return nil, nil, err
		}
		return notification.NewMemoryStorage(), template.NewMemoryStore(defaults...), nil
	case storageMongo:
		return a.openMongo(ctx)
	case storagePostgres, "":
	default:
		return nil, nil, fmt.Errorf("unknown NOTIFICATION_STORAGE %q", a.cfg.Storage)
	}

	pool, err := connectPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	a.checks = append(a.checks, httpserver.WithCheck("postgres", pg.Healthcheck(pool)))

	store, err := notification.NewPostgresStorage(pool)
	if err != nil {
		return nil, nil, err
	}
	templates, err := template.NewPostgresStore(pool)
	if err != nil {
		return nil, nil, err
	}
	return store, templates, nil
}

func (a *app) openMongo(ctx context.Context) (notification.Storage, template.Store, error) {
	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}
	db, err := mongo.NewWithDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: %w", err)
	}
	client := db.Client()
	a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
	a.checks = append(a.checks, httpserver.WithCheck("mongo", mongo.Healthcheck(client)))

	store, err := notification.NewMongoStorage(db)
	if err != nil {
		return nil, nil, err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, nil, err
	}
	templates, err := template.NewMongoStore(db)
	if err != nil {
		return nil, nil, err
	}
	if err := templates.EnsureIndexes(ctx); err != nil {
		return nil, nil, err
	}
	return store, templates, nil
}

func (a *app) openLimiter(ctx context.Context) (*ratelimit.Limiter, error) {
	var store ratelimit.Store
	switch strings.ToLower(a.cfg.RateLimit.Store) {
	case ratelimit.StoreMemory:
		mem := ratelimit.NewMemoryStore()
		a.closers = append(a.closers, mem.Close)
		store = mem
	case ratelimit.StoreRedis, "":
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, httpserver.WithCheck("redis", redis.Healthcheck(client)))
		rs, err := ratelimit.NewRedisStore(client)
		if err != nil {
			return nil, err
		}
		store = rs
	default:
		return nil, fmt.Errorf("unknown RATE_LIMIT_STORE %q", a.cfg.RateLimit.Store)
	}
	return ratelimit.NewLimiter(store, a.cfg.RateLimit.Options()...)
}

func connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return pool, nil
}

// Close waits for background callbacks, then closes connections in reverse
// order of opening.
func (a *app) Close() error {
	if a.service != nil {
		a.service.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
