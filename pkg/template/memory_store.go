package template

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps templates in memory.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewMemoryStore returns a store seeded with templates.
func NewMemoryStore(templates ...Template) *MemoryStore {
	s := &MemoryStore{templates: make(map[string]Template, len(templates))}
	for i := range templates {
		_ = s.Save(context.Background(), &templates[i])
	}
	return s
}

func memoryKey(code, channel, lang string) string {
	return code + "\x00" + strings.ToLower(channel) + "\x00" + strings.ToLower(lang)
}

func (s *MemoryStore) Find(_ context.Context, code, channel, lang string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[memoryKey(code, channel, lang)]
	if !ok || !t.IsActive {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

func (s *MemoryStore) Save(_ context.Context, t *Template) error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.Language == "" {
		t.Language = DefaultLanguage
	}
	now := time.Now().UTC()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[memoryKey(t.Code, t.Channel, t.Language)] = *t
	return nil
}
