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

// MongoPackageRepository implements domain.PackageRepository
type MongoPackageRepository struct {
	collection *mongo.Collection
}

// NewMongoPackageRepository creates a new package repository
func NewMongoPackageRepository(db *mongo.Database) *MongoPackageRepository {
	return &MongoPackageRepository{
		collection: db.Collection("packages"),
	}
}

func (r *MongoPackageRepository) List(ctx context.Context) ([]*domain.InternetPackage, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "price", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list packages")
	}
	defer cursor.Close(ctx)

	packages := []*domain.InternetPackage{}
	if err := cursor.All(ctx, &packages); err != nil {
		return nil, errors.Wrap(err, "failed to decode packages")
	}
	return packages, nil
}

func (r *MongoPackageRepository) GetByID(ctx context.Context, id string) (*domain.InternetPackage, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoPackageRepository) GetByName(ctx context.Context, name string) (*domain.InternetPackage, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

func (r *MongoPackageRepository) findOne(ctx context.Context, filter bson.M) (*domain.InternetPackage, error) {
	var pkg domain.InternetPackage
	if err := r.collection.FindOne(ctx, filter).Decode(&pkg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get package")
	}
	return &pkg, nil
}

func (r *MongoPackageRepository) Create(ctx context.Context, pkg *domain.InternetPackage) error {
	pkg.UpdatedAt = time.Now().UTC()
	if _, err := r.collection.InsertOne(ctx, pkg); err != nil {
		return errors.Wrap(err, "failed to create package")
	}
	return nil
}

func (r *MongoPackageRepository) Update(ctx context.Context, pkg *domain.InternetPackage) error {
	pkg.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": pkg.ID}, pkg)
	if err != nil {
		return errors.Wrap(err, "failed to update package")
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
