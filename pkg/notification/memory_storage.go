package notification

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/statemachine"
)

// MemoryStorage is an in-memory Storage for development and tests.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*Notification
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{notifications: make(map[uuid.UUID]*Notification)}
}

func (s *MemoryStorage) Create(_ context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		return ErrIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; ok {
		return ErrNotificationExists
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	s.notifications[n.ID] = n.clone()
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	return n.clone(), nil
}

func (s *MemoryStorage) ListByUser(_ context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			all = append(all, *n.clone())
		}
	}
	slices.SortFunc(all, func(a, b Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	total := len(all)
	start := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}
	return all[start:end], total, nil
}

func (s *MemoryStorage) Claim(_ context.Context, id uuid.UUID, at, staleBefore time.Time) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	stale := n.Status == StatusProcessing && n.UpdatedAt.Before(staleBefore)
	if err := transition(n.Status, eventClaim, stale); err != nil {
		if statemachine.IsTransitionRejectedError(err) {
			return nil, ErrInFlight
		}
		return nil, claimError(n.Status)
	}
	n.Status = StatusProcessing
	n.UpdatedAt = at
	return n.clone(), nil
}

func (s *MemoryStorage) Complete(_ context.Context, id uuid.UUID, c Completion) (*Notification, error) {
	if !validCompletion(c.Status) {
		return nil, fmt.Errorf("%w: complete to %s", ErrInvalidTransition, c.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	if err := transition(n.Status, completionEvent(c.Status), nil); err != nil {
		return nil, err
	}
	n.Status = c.Status
	n.ErrorMessage = c.ErrorMessage
	n.UpdatedAt = c.At
	if c.IncrementRetry {
		n.RetryCount++
	}
	if c.Status == StatusSent {
		at := c.At
		n.SentAt = &at
		n.ProviderMessageID = c.ProviderMessageID
	}
	return n.clone(), nil
}

func (s *MemoryStorage) MarkFailed(_ context.Context, id uuid.UUID, reason string, at time.Time) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	if err := transition(n.Status, eventDeadLetter, nil); err != nil {
		return nil, err
	}
	n.Status = StatusFailed
	n.ErrorMessage = reason
	n.UpdatedAt = at
	return n.clone(), nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
		n.UpdatedAt = at
	}
	return nil
}

func (s *MemoryStorage) Cancel(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	switch {
	case n.Status == StatusCancelled:
		return nil
	case canTransition(n.Status, eventCancel, nil):
		n.Status = StatusCancelled
		n.UpdatedAt = at
		return nil
	default:
		return cancelError(n.Status)
	}
}

func (s *MemoryStorage) ListStale(_ context.Context, olderThan time.Time, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []Notification
	for _, n := range s.notifications {
		if n.Status == StatusPending && n.UpdatedAt.Before(olderThan) {
			stale = append(stale, *n.clone())
		}
	}
	slices.SortFunc(stale, func(a, b Notification) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *MemoryStorage) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	if n.Status == StatusPending {
		n.UpdatedAt = at
	}
	return nil
}
