package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTemplateRepository stores WhatsApp message templates keyed by type
type MongoTemplateRepository struct {
	collection *mongo.Collection
}

func NewMongoTemplateRepository(db *mongo.Database) *MongoTemplateRepository {
	return &MongoTemplateRepository{
		collection: db.Collection("message_templates"),
	}
}

func (r *MongoTemplateRepository) Get(ctx context.Context, t domain.TemplateType) (*domain.MessageTemplate, error) {
	var tpl domain.MessageTemplate
	err := r.collection.FindOne(ctx, bson.M{"_id": t}).Decode(&tpl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get template %s", t)
	}
	return &tpl, nil
}

func (r *MongoTemplateRepository) List(ctx context.Context) ([]*domain.MessageTemplate, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list templates")
	}
	defer cursor.Close(ctx)

	templates := []*domain.MessageTemplate{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, errors.Wrap(err, "failed to decode templates")
	}
	return templates, nil
}

func (r *MongoTemplateRepository) Upsert(ctx context.Context, tpl *domain.MessageTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": tpl.Type}, tpl, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(err, "failed to save template %s", tpl.Type)
	}
	return nil
}
