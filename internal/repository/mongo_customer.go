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

// MongoCustomerRepository implements domain.CustomerRepository
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

// NewMongoCustomerRepository creates a new customer repository
func NewMongoCustomerRepository(db *mongo.Database) *MongoCustomerRepository {
	coll := db.Collection("customers")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// PPPoE usernames are unique on the router, mirror that here
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})

	return &MongoCustomerRepository{collection: coll}
}

func (r *MongoCustomerRepository) List(ctx context.Context) ([]*domain.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "join_date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list customers")
	}
	defer cursor.Close(ctx)

	customers := []*domain.Customer{}
	if err := cursor.All(ctx, &customers); err != nil {
		return nil, errors.Wrap(err, "failed to decode customers")
	}
	return customers, nil
}

func (r *MongoCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get customer")
	}
	return &c, nil
}

func (r *MongoCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	customer.UpdatedAt = time.Now().UTC()
	if _, err := r.collection.InsertOne(ctx, customer); err != nil {
		return errors.Wrap(err, "failed to create customer")
	}
	return nil
}

func (r *MongoCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	customer.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": customer.ID}, customer)
	if err != nil {
		return errors.Wrap(err, "failed to update customer")
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoCustomerRepository) UpdateStatus(ctx context.Context, id string, status domain.CustomerStatus) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errors.Wrap(err, "failed to update customer status")
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
