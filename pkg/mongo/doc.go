// Package mongo connects to MongoDB for the document storage backend.
//
// Configuration is read from MONGODB_* environment variables:
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//
// New retries the initial connection and ping, waiting RetryInterval between
// attempts and giving up early when ctx is cancelled. Healthcheck returns a
// readiness probe suitable for the ops router.
package mongo
