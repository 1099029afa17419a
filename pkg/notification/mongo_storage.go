package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoCollection is the collection MongoStorage keeps records in.
const MongoCollection = "notifications"

// MongoStorage stores notifications as documents. Transitions are single
// FindOneAndUpdate calls filtered on the current status.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a storage on the notifications collection of db.
func NewMongoStorage(db *mongo.Database) (*MongoStorage, error) {
	if db == nil {
		return nil, ErrStorageRequired
	}
	return &MongoStorage{coll: db.Collection(MongoCollection)}, nil
}

// EnsureIndexes creates the indexes used by ListByUser and ListStale.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

type mongoRecipient struct {
	Email       string `bson:"email,omitempty"`
	Phone       string `bson:"phone,omitempty"`
	DeviceToken string `bson:"device_token,omitempty"`
	ChatToken   string `bson:"chat_token,omitempty"`
}

type mongoNotification struct {
	ID                string            `bson:"_id"`
	UserID            string            `bson:"user_id"`
	Channel           string            `bson:"channel"`
	Status            string            `bson:"status"`
	Priority          int               `bson:"priority"`
	Title             string            `bson:"title"`
	Body              string            `bson:"body"`
	TemplateCode      string            `bson:"template_code,omitempty"`
	Placeholders      map[string]string `bson:"placeholders,omitempty"`
	Language          string            `bson:"language,omitempty"`
	Recipient         mongoRecipient    `bson:"recipient"`
	ImageURL          string            `bson:"image_url,omitempty"`
	CallbackURL       string            `bson:"callback_url,omitempty"`
	Data              map[string]any    `bson:"data,omitempty"`
	CorrelationID     string            `bson:"correlation_id,omitempty"`
	ProviderMessageID string            `bson:"provider_message_id,omitempty"`
	ErrorMessage      string            `bson:"error_message"`
	RetryCount        int               `bson:"retry_count"`
	SentAt            *time.Time        `bson:"sent_at,omitempty"`
	ReadAt            *time.Time        `bson:"read_at,omitempty"`
	CreatedAt         time.Time         `bson:"created_at"`
	UpdatedAt         time.Time         `bson:"updated_at"`
}

func toMongo(n *Notification) mongoNotification {
	return mongoNotification{
		ID:           n.ID.String(),
		UserID:       n.UserID.String(),
		Channel:      string(n.Channel),
		Status:       string(n.Status),
		Priority:     int(n.Priority),
		Title:        n.Title,
		Body:         n.Body,
		TemplateCode: n.TemplateCode,
		Placeholders: n.Placeholders,
		Language:     n.Language,
		Recipient: mongoRecipient{
			Email:       n.Recipient.Email,
			Phone:       n.Recipient.Phone,
			DeviceToken: n.Recipient.DeviceToken,
			ChatToken:   n.Recipient.ChatToken,
		},
		ImageURL:          n.ImageURL,
		CallbackURL:       n.CallbackURL,
		Data:              n.Data,
		CorrelationID:     n.CorrelationID,
		ProviderMessageID: n.ProviderMessageID,
		ErrorMessage:      n.ErrorMessage,
		RetryCount:        n.RetryCount,
		SentAt:            n.SentAt,
		ReadAt:            n.ReadAt,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func (d *mongoNotification) notification() (*Notification, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode notification id: %w", err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("decode notification user id: %w", err)
	}
	n := &Notification{
		ID:           id,
		UserID:       userID,
		Channel:      ChannelType(d.Channel),
		Status:       Status(d.Status),
		Priority:     Priority(d.Priority),
		Title:        d.Title,
		Body:         d.Body,
		TemplateCode: d.TemplateCode,
		Placeholders: d.Placeholders,
		Language:     d.Language,
		Recipient: Recipient{
			Email:       d.Recipient.Email,
			Phone:       d.Recipient.Phone,
			DeviceToken: d.Recipient.DeviceToken,
			ChatToken:   d.Recipient.ChatToken,
		},
		ImageURL:          d.ImageURL,
		CallbackURL:       d.CallbackURL,
		Data:              d.Data,
		CorrelationID:     d.CorrelationID,
		ProviderMessageID: d.ProviderMessageID,
		ErrorMessage:      d.ErrorMessage,
		RetryCount:        d.RetryCount,
		SentAt:            utcPtr(d.SentAt),
		ReadAt:            utcPtr(d.ReadAt),
		CreatedAt:         d.CreatedAt.UTC(),
		UpdatedAt:         d.UpdatedAt.UTC(),
	}
	return n, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *MongoStorage) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		return ErrIDRequired
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	if _, err := s.coll.InsertOne(ctx, toMongo(n)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrNotificationExists
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *MongoStorage) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	var doc mongoNotification
	err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return doc.notification()
}

func (s *MongoStorage) ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, int, error) {
	filter := bson.M{"user_id": userID.String()}
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(max(opts.Offset, 0)))
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	list, err := s.find(ctx, filter, find)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return list, int(total), nil
}

func (s *MongoStorage) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]Notification, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []mongoNotification
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	list := make([]Notification, 0, len(docs))
	for i := range docs {
		n, err := docs[i].notification()
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, nil
}

// transition applies update when filter matches. When nothing matches it
// returns the current record so callers can explain the refusal.
func (s *MongoStorage) transition(ctx context.Context, id uuid.UUID, filter, update bson.M) (*Notification, *Notification, error) {
	filter["_id"] = id.String()
	var doc mongoNotification
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		n, err := doc.notification()
		return n, nil, err
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return nil, current, nil
}

func (s *MongoStorage) Claim(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (*Notification, error) {
	n, current, err := s.transition(ctx, id,
		bson.M{"$or": bson.A{
			bson.M{"status": bson.M{"$in": bson.A{string(StatusPending), string(StatusRetrying), string(StatusFailed)}}},
			bson.M{"status": string(StatusProcessing), "updated_at": bson.M{"$lt": staleBefore}},
		}},
		bson.M{"$set": bson.M{"status": string(StatusProcessing), "updated_at": at}},
	)
	if err != nil {
		return nil, fmt.Errorf("claim notification: %w", err)
	}
	if n == nil {
		return nil, claimError(current.Status)
	}
	return n, nil
}

func (s *MongoStorage) Complete(ctx context.Context, id uuid.UUID, c Completion) (*Notification, error) {
	if !validCompletion(c.Status) {
		return nil, fmt.Errorf("%w: complete to %s", ErrInvalidTransition, c.Status)
	}
	set := bson.M{
		"status":        string(c.Status),
		"error_message": c.ErrorMessage,
		"updated_at":    c.At,
	}
	if c.Status == StatusSent {
		set["sent_at"] = c.At
		set["provider_message_id"] = c.ProviderMessageID
	}
	update := bson.M{"$set": set}
	if c.IncrementRetry {
		update["$inc"] = bson.M{"retry_count": 1}
	}

	n, current, err := s.transition(ctx, id, bson.M{"status": string(StatusProcessing)}, update)
	if err != nil {
		return nil, fmt.Errorf("complete notification: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, c.Status)
	}
	return n, nil
}

func (s *MongoStorage) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*Notification, error) {
	n, current, err := s.transition(ctx, id,
		bson.M{"status": bson.M{"$nin": bson.A{string(StatusSent), string(StatusCancelled)}}},
		bson.M{"$set": bson.M{"status": string(StatusFailed), "error_message": reason, "updated_at": at}},
	)
	if err != nil {
		return nil, fmt.Errorf("mark notification failed: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, StatusFailed)
	}
	return n, nil
}

func (s *MongoStorage) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "read_at": nil},
		bson.M{"$set": bson.M{"read_at": at, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		_, err := s.Get(ctx, id)
		return err
	}
	return nil
}

func (s *MongoStorage) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, current, err := s.transition(ctx, id,
		bson.M{"status": bson.M{"$in": bson.A{string(StatusPending), string(StatusRetrying), string(StatusFailed)}}},
		bson.M{"$set": bson.M{"status": string(StatusCancelled), "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	if n == nil && current.Status != StatusCancelled {
		return cancelError(current.Status)
	}
	return nil
}

func (s *MongoStorage) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]Notification, error) {
	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		find.SetLimit(int64(limit))
	}
	list, err := s.find(ctx, bson.M{"status": string(StatusPending), "updated_at": bson.M{"$lt": olderThan}}, find)
	if err != nil {
		return nil, fmt.Errorf("list stale notifications: %w", err)
	}
	return list, nil
}

func (s *MongoStorage) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(StatusPending)},
		bson.M{"$set": bson.M{"updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("touch notification: %w", err)
	}
	if res.MatchedCount == 0 {
		_, err := s.Get(ctx, id)
		return err
	}
	return nil
}
