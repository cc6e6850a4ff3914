package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const companyDocID = "company"

// MongoCompanyRepository keeps the single company profile document
type MongoCompanyRepository struct {
	collection *mongo.Collection
}

func NewMongoCompanyRepository(db *mongo.Database) *MongoCompanyRepository {
	return &MongoCompanyRepository{collection: db.Collection("settings")}
}

func (r *MongoCompanyRepository) Get(ctx context.Context) (*domain.CompanyConfig, error) {
	var cfg domain.CompanyConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": companyDocID}).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &domain.CompanyConfig{}, nil
		}
		return nil, errors.Wrap(err, "failed to get company profile")
	}
	return &cfg, nil
}

func (r *MongoCompanyRepository) Update(ctx context.Context, cfg *domain.CompanyConfig) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": companyDocID},
		bson.M{"$set": cfg},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update company profile")
	}
	return nil
}
