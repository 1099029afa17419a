// Package httpserver runs the operational HTTP endpoints of the notifier:
// liveness, readiness and Prometheus metrics.
//
// Server wraps http.Server with context driven graceful shutdown. Run
// blocks until ctx is cancelled, so it fits an errgroup next to the queue
// consumers:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	router := httpserver.NewOpsRouter(
//		httpserver.WithMetrics(m.Handler()),
//		httpserver.WithCheck("postgres", pool.Ping),
//		httpserver.WithCheck("broker", brokerCheck),
//	)
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// /healthz always answers 200 while the process serves requests. /readyz
// runs every check with the request context and answers 503 with a JSON
// body naming the failing dependencies.
package httpserver
