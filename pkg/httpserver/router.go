package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slipverify/notifier/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

type routerConfig struct {
	metrics      http.Handler
	checks       []namedCheck
	checkTimeout time.Duration
	logger       *slog.Logger
}

// RouterOption configures the ops router.
type RouterOption func(*routerConfig)

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) RouterOption {
	return func(c *routerConfig) { c.metrics = h }
}

// WithCheck adds a readiness check.
func WithCheck(name string, check Check) RouterOption {
	return func(c *routerConfig) {
		if check != nil {
			c.checks = append(c.checks, namedCheck{name: name, check: check})
		}
	}
}

// WithCheckTimeout bounds every readiness check. Defaults to 2s.
func WithCheckTimeout(d time.Duration) RouterOption {
	return func(c *routerConfig) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

// WithRouterLogger sets the logger for failed checks.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewOpsRouter returns a router serving /healthz, /readyz and, when
// configured, /metrics.
func NewOpsRouter(opts ...RouterOption) http.Handler {
	cfg := &routerConfig{checkTimeout: 2 * time.Second, logger: logger.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
	r.Get("/readyz", cfg.readiness)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}
	return r
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (c *routerConfig) readiness(w http.ResponseWriter, r *http.Request) {
	resp := readiness{Status: "ready", Checks: make(map[string]string, len(c.checks))}
	code := http.StatusOK

	for _, nc := range c.checks {
		ctx, cancel := context.WithTimeout(r.Context(), c.checkTimeout)
		err := nc.check(ctx)
		cancel()
		if err != nil {
			c.logger.WarnContext(r.Context(), "readiness check failed",
				slog.String("check", nc.name),
				logger.Error(err),
			)
			resp.Checks[nc.name] = err.Error()
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[nc.name] = "ok"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
