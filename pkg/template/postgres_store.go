package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads templates from the notification_templates table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db DB) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrStoreRequired
	}
	return &PostgresStore{db: db}, nil
}

const findTemplateSQL = `
SELECT id, code, name, channel, language, subject, body, is_active, metadata, created_at, updated_at
FROM notification_templates
WHERE code = $1 AND channel = $2 AND lower(language) = lower($3) AND is_active AND deleted_at IS NULL`

func (s *PostgresStore) Find(ctx context.Context, code, channel, lang string) (*Template, error) {
	var (
		t        Template
		metadata []byte
	)
	err := s.db.QueryRow(ctx, findTemplateSQL, code, channel, lang).Scan(
		&t.ID, &t.Code, &t.Name, &t.Channel, &t.Language, &t.Subject, &t.Body,
		&t.IsActive, &metadata, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode template metadata: %w", err)
		}
	}
	return &t, nil
}

const saveTemplateSQL = `
INSERT INTO notification_templates (id, code, name, channel, language, subject, body, is_active, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (code, channel, language) DO UPDATE SET
	name = EXCLUDED.name,
	subject = EXCLUDED.subject,
	body = EXCLUDED.body,
	is_active = EXCLUDED.is_active,
	metadata = EXCLUDED.metadata,
	updated_at = EXCLUDED.updated_at,
	deleted_at = NULL`

func (s *PostgresStore) Save(ctx context.Context, t *Template) error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.Language == "" {
		t.Language = DefaultLanguage
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	var metadata []byte
	if t.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(t.Metadata); err != nil {
			return fmt.Errorf("encode template metadata: %w", err)
		}
	}

	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, saveTemplateSQL,
		t.ID, t.Code, t.Name, t.Channel, t.Language, t.Subject, t.Body, t.IsActive, metadata, now,
	)
	if err != nil {
		return fmt.Errorf("save template %q: %w", t.Code, err)
	}
	t.UpdatedAt = now
	return nil
}
