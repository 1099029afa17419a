package template

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoCollection is the collection MongoStore keeps templates in.
const MongoCollection = "notification_templates"

// MongoStore keeps templates as documents keyed by code, channel and language.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store on the templates collection of db.
func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, ErrStoreRequired
	}
	return &MongoStore{coll: db.Collection(MongoCollection)}, nil
}

// EnsureIndexes creates the unique lookup index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}, {Key: "channel", Value: 1}, {Key: "language", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create template index: %w", err)
	}
	return nil
}

type mongoTemplate struct {
	ID        string         `bson:"id"`
	Code      string         `bson:"code"`
	Name      string         `bson:"name"`
	Channel   string         `bson:"channel"`
	Language  string         `bson:"language"`
	Subject   string         `bson:"subject"`
	Body      string         `bson:"body"`
	IsActive  bool           `bson:"is_active"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

func (s *MongoStore) Find(ctx context.Context, code, channel, lang string) (*Template, error) {
	var doc mongoTemplate
	err := s.coll.FindOne(ctx, bson.M{
		"code":      code,
		"channel":   strings.ToLower(channel),
		"language":  strings.ToLower(lang),
		"is_active": true,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find template %q: %w", code, err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("decode template id: %w", err)
	}
	return &Template{
		ID:        id,
		Code:      doc.Code,
		Name:      doc.Name,
		Channel:   doc.Channel,
		Language:  doc.Language,
		Subject:   doc.Subject,
		Body:      doc.Body,
		IsActive:  doc.IsActive,
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

// Save upserts the template. The id and creation time of an existing
// document are kept.
func (s *MongoStore) Save(ctx context.Context, t *Template) error {
	if err := t.validate(); err != nil {
		return err
	}
	if t.Language == "" {
		t.Language = DefaultLanguage
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()

	_, err := s.coll.UpdateOne(ctx,
		bson.M{
			"code":     t.Code,
			"channel":  strings.ToLower(t.Channel),
			"language": strings.ToLower(t.Language),
		},
		bson.M{
			"$set": bson.M{
				"name":       t.Name,
				"subject":    t.Subject,
				"body":       t.Body,
				"is_active":  t.IsActive,
				"metadata":   t.Metadata,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"id":         t.ID.String(),
				"created_at": now,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save template %q: %w", t.Code, err)
	}
	t.UpdatedAt = now
	return nil
}
