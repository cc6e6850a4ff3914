package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSystemLogRepository implements domain.SystemLogRepository
type MongoSystemLogRepository struct {
	collection *mongo.Collection
}

func NewMongoSystemLogRepository(db *mongo.Database) *MongoSystemLogRepository {
	return &MongoSystemLogRepository{collection: db.Collection("system_logs")}
}

func (r *MongoSystemLogRepository) Append(ctx context.Context, entry *domain.SystemLog) error {
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return errors.Wrap(err, "failed to append system log")
	}
	return nil
}

func (r *MongoSystemLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SystemLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list system logs")
	}
	defer cursor.Close(ctx)

	logs := []*domain.SystemLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, errors.Wrap(err, "failed to decode system logs")
	}
	return logs, nil
}
