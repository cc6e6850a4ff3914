package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unpaidInvoice(id, customerID string, amount int64, due time.Time) *domain.Invoice {
	return &domain.Invoice{
		ID:            id,
		CustomerID:    customerID,
		CustomerName:  "Customer " + customerID,
		Amount:        amount,
		DueDate:       due,
		Period:        domain.PeriodLabel(due),
		PeriodKey:     domain.PeriodKey(due),
		Status:        domain.InvoiceStatusUnpaid,
		CreatedAt:     domain.DateOf(due).AddDate(0, 0, -5),
		Notifications: []domain.NotificationLog{},
	}
}

func TestConfirmPayment_MarksPaid(t *testing.T) {
	ctx := context.Background()
	now := day(2026, time.October, 16)
	f := newBillingFixture(t, now, defaultPolicy())
	before := unpaidInvoice("INV-2026-0001", "CUST001", 150000, day(2026, time.October, 5))
	f.addInvoice(t, before)

	res, err := f.payments.ConfirmPayment(ctx, "INV-2026-0001")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.InvoiceStatusPaid, res.Invoice.Status)
	require.NotNil(t, res.Invoice.PaidAt)
	assert.True(t, res.Invoice.PaidAt.Equal(now))

	// everything except status and paid time is untouched
	after := res.Invoice
	assert.Equal(t, before.Amount, after.Amount)
	assert.Equal(t, before.CustomerName, after.CustomerName)
	assert.True(t, before.DueDate.Equal(after.DueDate))
	assert.Equal(t, before.Period, after.Period)

	paid := f.publisher.ofType(events.PaymentConfirmed)
	require.Len(t, paid, 1)
	assert.Equal(t, "INV-2026-0001", paid[0].InvoiceID)
	assert.Equal(t, 1, f.cache.count())
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addInvoice(t, unpaidInvoice("INV-2026-0001", "CUST001", 150000, day(2026, time.October, 5)))

	first, err := f.payments.ConfirmPayment(ctx, "INV-2026-0001")
	require.NoError(t, err)
	second, err := f.payments.ConfirmPayment(ctx, "INV-2026-0001")
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, domain.InvoiceStatusPaid, second.Invoice.Status)
	assert.Equal(t, first.Invoice.PaidAt, second.Invoice.PaidAt)

	assert.Len(t, f.publisher.ofType(events.PaymentConfirmed), 1)
	assert.Equal(t, 1, f.cache.count())
}

func TestConfirmPayment_ConcurrentCallersChangeOnce(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addInvoice(t, unpaidInvoice("INV-2026-0001", "CUST001", 150000, day(2026, time.October, 5)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.payments.ConfirmPaymentFrom(ctx, "INV-2026-0001", PaymentSourceWebhook)
			if !assert.NoError(t, err) {
				return
			}
			if res.Changed {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changed)
	assert.Len(t, f.publisher.ofType(events.PaymentConfirmed), 1)
}

func TestConfirmPayment_UnknownInvoice(t *testing.T) {
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())

	_, err := f.payments.ConfirmPayment(context.Background(), "INV-2026-9999")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.publisher.ofType(events.PaymentConfirmed))
}
