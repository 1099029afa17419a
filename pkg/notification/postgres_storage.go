package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/slipverify/notifier/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PostgresStorage.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage stores notifications in the notifications table.
// Transitions are single conditional UPDATE statements.
type PostgresStorage struct {
	db DB
}

// NewPostgresStorage creates a storage on db.
func NewPostgresStorage(db DB) (*PostgresStorage, error) {
	if db == nil {
		return nil, ErrStorageRequired
	}
	return &PostgresStorage{db: db}, nil
}

const notificationColumns = `id, user_id, channel, status, priority, title, body,
	template_code, placeholders, language,
	recipient_email, recipient_phone, device_token, chat_token,
	image_url, callback_url, data, correlation_id,
	provider_message_id, error_message, retry_count,
	sent_at, read_at, created_at, updated_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n            Notification
		channel      string
		status       string
		priority     int
		placeholders []byte
		data         []byte
	)
	err := row.Scan(
		&n.ID, &n.UserID, &channel, &status, &priority, &n.Title, &n.Body,
		&n.TemplateCode, &placeholders, &n.Language,
		&n.Recipient.Email, &n.Recipient.Phone, &n.Recipient.DeviceToken, &n.Recipient.ChatToken,
		&n.ImageURL, &n.CallbackURL, &data, &n.CorrelationID,
		&n.ProviderMessageID, &n.ErrorMessage, &n.RetryCount,
		&n.SentAt, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}

	n.Channel = ChannelType(channel)
	n.Status = Status(status)
	n.Priority = Priority(priority)
	if len(placeholders) > 0 {
		if err := json.Unmarshal(placeholders, &n.Placeholders); err != nil {
			return nil, fmt.Errorf("decode placeholders: %w", err)
		}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &n, nil
}

func marshalJSON(v any, isNil bool) ([]byte, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}

const insertNotificationSQL = `
INSERT INTO notifications (` + notificationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

func (s *PostgresStorage) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		return ErrIDRequired
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}

	placeholders, err := marshalJSON(n.Placeholders, n.Placeholders == nil)
	if err != nil {
		return fmt.Errorf("encode placeholders: %w", err)
	}
	data, err := marshalJSON(n.Data, n.Data == nil)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	_, err = s.db.Exec(ctx, insertNotificationSQL,
		n.ID, n.UserID, string(n.Channel), string(n.Status), int(n.Priority), n.Title, n.Body,
		n.TemplateCode, placeholders, n.Language,
		n.Recipient.Email, n.Recipient.Phone, n.Recipient.DeviceToken, n.Recipient.ChatToken,
		n.ImageURL, n.CallbackURL, data, n.CorrelationID,
		n.ProviderMessageID, n.ErrorMessage, n.RetryCount,
		n.SentAt, n.ReadAt, n.CreatedAt, n.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrNotificationExists
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return scanNotification(s.db.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
}

func (s *PostgresStorage) ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, int, error) {
	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	limit := any(nil)
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collect(rows pgx.Rows) ([]Notification, error) {
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

// transition runs a conditional UPDATE ... RETURNING. When no row matches it
// loads the record so the caller can explain the refusal.
func (s *PostgresStorage) transition(ctx context.Context, id uuid.UUID, sql string, args ...any) (*Notification, *Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return n, nil, nil
	}
	if !errors.Is(err, ErrNotificationNotFound) {
		return nil, nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return nil, current, nil
}

func (s *PostgresStorage) Claim(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (*Notification, error) {
	n, current, err := s.transition(ctx, id, `
		UPDATE notifications SET status = 'processing', updated_at = $2
		WHERE id = $1 AND (
			status IN ('pending', 'retrying', 'failed')
			OR (status = 'processing' AND updated_at < $3)
		)
		RETURNING `+notificationColumns,
		id, at, staleBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("claim notification: %w", err)
	}
	if n == nil {
		return nil, claimError(current.Status)
	}
	return n, nil
}

func (s *PostgresStorage) Complete(ctx context.Context, id uuid.UUID, c Completion) (*Notification, error) {
	if !validCompletion(c.Status) {
		return nil, fmt.Errorf("%w: complete to %s", ErrInvalidTransition, c.Status)
	}
	increment := 0
	if c.IncrementRetry {
		increment = 1
	}
	n, current, err := s.transition(ctx, id, `
		UPDATE notifications SET
			status = $2,
			error_message = $3,
			retry_count = retry_count + $4,
			provider_message_id = CASE WHEN $2 = 'sent' THEN $5 ELSE provider_message_id END,
			sent_at = CASE WHEN $2 = 'sent' THEN $6 ELSE sent_at END,
			updated_at = $6
		WHERE id = $1 AND status = 'processing'
		RETURNING `+notificationColumns,
		id, string(c.Status), c.ErrorMessage, increment, c.ProviderMessageID, c.At,
	)
	if err != nil {
		return nil, fmt.Errorf("complete notification: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, c.Status)
	}
	return n, nil
}

func (s *PostgresStorage) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Notification, error) {
	n, current, err := s.transition(ctx, id, `
		UPDATE notifications SET status = 'failed', error_message = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('sent', 'cancelled')
		RETURNING `+notificationColumns,
		id, reason, at,
	)
	if err != nil {
		return nil, fmt.Errorf("mark notification failed: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, StatusFailed)
	}
	return n, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $2), updated_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *PostgresStorage) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, current, err := s.transition(ctx, id, `
		UPDATE notifications SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'retrying', 'failed')
		RETURNING `+notificationColumns,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	if n == nil && current.Status != StatusCancelled {
		return cancelError(current.Status)
	}
	return nil
}

func (s *PostgresStorage) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE status = 'pending' AND updated_at < $1
		ORDER BY created_at
		LIMIT $2`,
		olderThan, max(limit, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale notifications: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStorage) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE notifications SET updated_at = $2 WHERE id = $1 AND status = 'pending'`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("touch notification: %w", err)
	}
	return nil
}
