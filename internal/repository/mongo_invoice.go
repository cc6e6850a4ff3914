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

// MongoInvoiceRepository implements domain.InvoiceRepository.
// The invoice number is the document _id, so the primary key enforces id
// uniqueness; a second unique index stops two invoices for one customer period.
type MongoInvoiceRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoInvoiceRepository creates a new invoice repository and its indexes.
// AppendInvoices needs a replica set (transactions).
func NewMongoInvoiceRepository(ctx context.Context, db *mongo.Database) (*MongoInvoiceRepository, error) {
	coll := db.Collection("invoices")

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "period_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_customer_period"),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create invoice indexes")
	}

	return &MongoInvoiceRepository{
		client:     db.Client(),
		collection: coll,
	}, nil
}

func (r *MongoInvoiceRepository) List(ctx context.Context) ([]*domain.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list invoices")
	}
	defer cursor.Close(ctx)

	invoices := []*domain.Invoice{}
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, errors.Wrap(err, "failed to decode invoices")
	}
	return invoices, nil
}

func (r *MongoInvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, errors.Wrapf(err, "failed to get invoice %s", id)
	}
	return &inv, nil
}

// AppendInvoices inserts the batch inside a transaction. A duplicate key on
// either index aborts the whole batch.
func (r *MongoInvoiceRepository) AppendInvoices(ctx context.Context, invoices []*domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	docs := make([]interface{}, len(invoices))
	for i, inv := range invoices {
		if inv.Notifications == nil {
			inv.Notifications = []domain.NotificationLog{}
		}
		docs[i] = inv
	}

	session, err := r.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "failed to start session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.collection.InsertMany(sc, docs)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrap(domain.ErrDuplicateInvoiceID, err.Error())
		}
		return errors.Wrap(err, "failed to append invoices")
	}
	return nil
}

// UpdateStatus only matches documents whose status differs, so a repeated
// call reports changed=false.
func (r *MongoInvoiceRepository) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, at time.Time) (bool, error) {
	set := bson.M{"status": status}
	update := bson.M{"$set": set}
	if status == domain.InvoiceStatusPaid {
		set["paid_at"] = at
	} else {
		update["$unset"] = bson.M{"paid_at": ""}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": bson.M{"$ne": status}}, update)
	if err != nil {
		return false, errors.Wrapf(err, "failed to update invoice %s", id)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up invoice %s", id)
	}
	if n == 0 {
		return false, domain.ErrInvoiceNotFound
	}
	return false, nil
}

func (r *MongoInvoiceRepository) AppendNotification(ctx context.Context, id string, entry domain.NotificationLog) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"notifications": entry}},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to append notification to %s", id)
	}
	if res.MatchedCount == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}
