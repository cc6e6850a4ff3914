package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupMongo starts a single-node replica set so transactions are available
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetDirect(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	return client.Database("billing_test")
}

func TestMongoInvoiceRepository(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()

	repo, err := NewMongoInvoiceRepository(ctx, db)
	require.NoError(t, err)

	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{
		testInvoice("INV-2024-0001", "c1"),
		testInvoice("INV-2024-0002", "c2"),
	}))

	t.Run("duplicate id aborts the batch", func(t *testing.T) {
		err := repo.AppendInvoices(ctx, []*domain.Invoice{
			testInvoice("INV-2024-0003", "c3"),
			testInvoice("INV-2024-0001", "c4"),
		})
		assert.True(t, errors.Is(err, domain.ErrDuplicateInvoiceID))

		_, err = repo.GetByID(ctx, "INV-2024-0003")
		assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	})

	t.Run("second invoice for the same customer period is rejected", func(t *testing.T) {
		err := repo.AppendInvoices(ctx, []*domain.Invoice{testInvoice("INV-2024-0010", "c1")})
		assert.True(t, errors.Is(err, domain.ErrDuplicateInvoiceID))
	})

	t.Run("update status is idempotent", func(t *testing.T) {
		at := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
		changed, err := repo.UpdateStatus(ctx, "INV-2024-0001", domain.InvoiceStatusPaid, at)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = repo.UpdateStatus(ctx, "INV-2024-0001", domain.InvoiceStatusPaid, at)
		require.NoError(t, err)
		assert.False(t, changed)

		_, err = repo.UpdateStatus(ctx, "INV-2024-0404", domain.InvoiceStatusPaid, at)
		assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

		inv, err := repo.GetByID(ctx, "INV-2024-0001")
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
		assert.Equal(t, int64(150000), inv.Amount)
	})

	t.Run("notifications append", func(t *testing.T) {
		require.NoError(t, repo.AppendNotification(ctx, "INV-2024-0002", domain.NotificationLog{
			ID: "n1", Type: domain.NotificationInvoice, Status: domain.NotificationSent,
		}))
		inv, err := repo.GetByID(ctx, "INV-2024-0002")
		require.NoError(t, err)
		assert.Len(t, inv.Notifications, 1)
	})

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
