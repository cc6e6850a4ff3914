package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInvoice(id, customerID string) *domain.Invoice {
	return &domain.Invoice{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: "Budi Santoso",
		Amount:       150000,
		DueDate:      time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
		Period:       "Mei 2024",
		PeriodKey:    "2024-05",
		Status:       domain.InvoiceStatusUnpaid,
		CreatedAt:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryInvoiceRepository_AppendIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInvoiceRepository()

	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{testInvoice("INV-2024-0001", "c1")}))

	err := repo.AppendInvoices(ctx, []*domain.Invoice{
		testInvoice("INV-2024-0002", "c2"),
		testInvoice("INV-2024-0001", "c3"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateInvoiceID))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed batch must not leave partial writes")
}

func TestMemoryInvoiceRepository_RejectsDuplicateInsideBatch(t *testing.T) {
	repo := NewMemoryInvoiceRepository()
	err := repo.AppendInvoices(context.Background(), []*domain.Invoice{
		testInvoice("INV-2024-0009", "c1"),
		testInvoice("INV-2024-0009", "c2"),
	})
	assert.True(t, errors.Is(err, domain.ErrDuplicateInvoiceID))
}

func TestMemoryInvoiceRepository_OneInvoicePerCustomerPeriod(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInvoiceRepository()
	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{testInvoice("INV-2024-0001", "c1")}))

	err := repo.AppendInvoices(ctx, []*domain.Invoice{
		testInvoice("INV-2024-0002", "c2"),
		testInvoice("INV-2024-0003", "c1"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateInvoiceID))

	err = repo.AppendInvoices(ctx, []*domain.Invoice{
		testInvoice("INV-2024-0004", "c3"),
		testInvoice("INV-2024-0005", "c3"),
	})
	assert.True(t, errors.Is(err, domain.ErrDuplicateInvoiceID))

	next := testInvoice("INV-2024-0006", "c1")
	next.PeriodKey = "2024-06"
	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{next}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryInvoiceRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInvoiceRepository()
	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{testInvoice("INV-2024-0001", "c1")}))

	paidAt := time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)
	changed, err := repo.UpdateStatus(ctx, "INV-2024-0001", domain.InvoiceStatusPaid, paidAt)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatus(ctx, "INV-2024-0001", domain.InvoiceStatusPaid, paidAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	inv, err := repo.GetByID(ctx, "INV-2024-0001")
	require.NoError(t, err)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, paidAt, *inv.PaidAt, "second call must not move PaidAt")
	assert.Equal(t, int64(150000), inv.Amount)

	_, err = repo.UpdateStatus(ctx, "INV-2024-9999", domain.InvoiceStatusPaid, paidAt)
	assert.True(t, errors.Is(err, domain.ErrInvoiceNotFound))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestMemoryInvoiceRepository_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInvoiceRepository()
	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{testInvoice("INV-2024-0001", "c1")}))

	inv, err := repo.GetByID(ctx, "INV-2024-0001")
	require.NoError(t, err)
	inv.Amount = 1
	inv.Notifications = append(inv.Notifications, domain.NotificationLog{ID: "x"})

	again, err := repo.GetByID(ctx, "INV-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), again.Amount)
	assert.Empty(t, again.Notifications)
}

func TestMemoryInvoiceRepository_AppendNotification(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInvoiceRepository()
	require.NoError(t, repo.AppendInvoices(ctx, []*domain.Invoice{testInvoice("INV-2024-0001", "c1")}))

	entry := domain.NotificationLog{ID: "n1", Type: domain.NotificationInvoice, Status: domain.NotificationSent}
	require.NoError(t, repo.AppendNotification(ctx, "INV-2024-0001", entry))

	inv, err := repo.GetByID(ctx, "INV-2024-0001")
	require.NoError(t, err)
	require.Len(t, inv.Notifications, 1)
	assert.Equal(t, "n1", inv.Notifications[0].ID)

	assert.True(t, errors.Is(repo.AppendNotification(ctx, "nope", entry), domain.ErrInvoiceNotFound))
}

func TestMemoryInvoiceRepository_ConcurrentBatches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryInvoiceRepository()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			batch := make([]*domain.Invoice, 0, 50)
			for i := 0; i < 50; i++ {
				batch = append(batch, testInvoice(fmt.Sprintf("INV-2024-%d%03d", w+1, i), fmt.Sprintf("c%d-%d", w, i)))
			}
			assert.NoError(t, repo.AppendInvoices(ctx, batch))
		}(w)
	}
	wg.Wait()

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 400)
}

func TestMemoryCustomerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCustomerRepository()

	c := &domain.Customer{ID: "c1", Name: "Budi", Status: domain.CustomerStatusActive, BillingCycleDay: 5}
	require.NoError(t, repo.Create(ctx, c))
	require.Error(t, repo.Create(ctx, c))

	require.NoError(t, repo.UpdateStatus(ctx, "c1", domain.CustomerStatusSuspended))
	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerStatusSuspended, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", domain.CustomerStatusActive), domain.ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryPackageRepository_GetByName(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPackageRepository()
	require.NoError(t, repo.Create(ctx, &domain.InternetPackage{ID: "p1", Name: "Home 20Mbps", Price: 150000}))

	pkg, err := repo.GetByName(ctx, "home 20mbps")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), pkg.Price)

	_, err = repo.GetByName(ctx, "Gamer")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemorySystemLogRepository_NewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySystemLogRepository(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Append(ctx, &domain.SystemLog{ID: fmt.Sprint(i)}))
	}

	logs, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "5", logs[0].ID)
	assert.Equal(t, "3", logs[2].ID)

	logs, err = repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestMemoryUserRepository_UniqueUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	require.NoError(t, repo.Create(ctx, &domain.SystemUser{ID: "u1", Username: "admin"}))
	assert.Error(t, repo.Create(ctx, &domain.SystemUser{ID: "u2", Username: "admin"}))

	u, err := repo.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}
