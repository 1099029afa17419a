// Package logger builds the service's *slog.Logger and provides attribute
// helpers so every component names log keys the same way.
//
// New applies functional options (format, level, output, static attributes,
// context extractors) and wraps the chosen slog.Handler with a decorator that
// pulls request-scoped values such as the correlation id out of the context on
// each call.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "notifier"),
//		logger.WithContextValue("correlation_id", correlationKey{}),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
//		logger.NotificationID(id),
//		logger.Channel("email"),
//	)
package logger
