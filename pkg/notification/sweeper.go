package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/slipverify/notifier/pkg/logger"
)

// Sweeper republishes pending records whose envelope was never published
// or was lost, e.g. while the broker was unavailable.
type Sweeper struct {
	svc       *Service
	interval  time.Duration
	olderThan time.Duration
	batchSize int
	onSweep   func(published int)
	logger    *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets the time between sweeps. Defaults to 1m.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepAge sets how long a record must stay pending before it is
// republished. Defaults to 2m.
func WithSweepAge(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.olderThan = d
		}
	}
}

// WithSweepBatchSize caps the records republished per sweep. Defaults to 100.
func WithSweepBatchSize(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithOnSweep registers a hook receiving the count of every periodic sweep.
func WithOnSweep(fn func(published int)) SweeperOption {
	return func(s *Sweeper) { s.onSweep = fn }
}

// WithSweeperLogger sets the sweeper logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSweeper creates a sweeper for svc.
func NewSweeper(svc *Service, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		svc:       svc,
		interval:  time.Minute,
		olderThan: 2 * time.Minute,
		batchSize: 100,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("sweeper"))
	return s
}

// Run returns a function suitable for errgroup that sweeps every interval
// until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) func() error {
	return func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				n, err := s.Sweep(ctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					s.logger.LogAttrs(ctx, slog.LevelError, "sweep failed", logger.Error(err))
				}
				if s.onSweep != nil {
					s.onSweep(n)
				}
			}
		}
	}
}

// Sweep republishes one batch of stale pending records and returns how many
// were published. It stops at the first publish failure.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.svc.now().UTC()
	stale, err := s.svc.store.ListStale(ctx, now.Add(-s.olderThan), s.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for i := range stale {
		n := &stale[i]
		if err := s.svc.publish(ctx, n); err != nil {
			return published, err
		}
		if err := s.svc.store.Touch(ctx, n.ID, now); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "touch republished notification",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
		}
		published++
	}
	if published > 0 {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "republished pending notifications",
			slog.Int("count", published),
		)
	}
	return published, nil
}
