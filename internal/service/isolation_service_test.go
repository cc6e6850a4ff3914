package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubListener struct {
	calls []string
	err   error
}

func (l *stubListener) IsolationTimeChanged(hhmm string) error {
	l.calls = append(l.calls, hhmm)
	return l.err
}

func newIsolationFixture(t *testing.T, today time.Time, settings IsolationSettings) (*billingFixture, *IsolationService) {
	t.Helper()
	f := newBillingFixture(t, today, defaultPolicy())
	svc := NewIsolationService(f.customers, f.invoices, f.clock, f.publisher, f.activity, f.cache, nil, settings)
	return f, svc
}

func TestIsolation_TargetsHonourGraceDays(t *testing.T) {
	ctx := context.Background()
	// due on the 5th, three days of grace: the sweep acts on the 8th
	f, svc := newIsolationFixture(t, day(2026, time.October, 8), IsolationSettings{Enabled: true, Time: "00:00", GraceDays: 3})
	f.addCustomer(t, "LATE", 5, 150000, domain.CustomerStatusActive)
	f.addCustomer(t, "EARLY", 8, 150000, domain.CustomerStatusActive)
	f.addInvoice(t, unpaidInvoice("INV-2026-0001", "LATE", 150000, time.Date(2026, time.October, 5, 0, 0, 0, 0, wib)))
	f.addInvoice(t, unpaidInvoice("INV-2026-0002", "EARLY", 150000, time.Date(2026, time.October, 8, 0, 0, 0, 0, wib)))

	targets, err := svc.Targets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "LATE", targets[0].ID)
}

func TestIsolation_SweepSuspendsWhenEnabled(t *testing.T) {
	ctx := context.Background()
	f, svc := newIsolationFixture(t, day(2026, time.October, 5), IsolationSettings{Enabled: true, Time: "00:00"})
	f.addCustomer(t, "UNPAID", 5, 150000, domain.CustomerStatusActive)
	f.addCustomer(t, "PAID", 5, 150000, domain.CustomerStatusActive)
	due := time.Date(2026, time.October, 5, 0, 0, 0, 0, wib)
	f.addInvoice(t, unpaidInvoice("INV-2026-0001", "UNPAID", 150000, due))
	paid := unpaidInvoice("INV-2026-0002", "PAID", 150000, due)
	paid.Status = domain.InvoiceStatusPaid
	f.addInvoice(t, paid)

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-05", res.Date)
	require.Len(t, res.Isolated, 1)
	assert.Equal(t, "UNPAID", res.Isolated[0].ID)
	assert.Equal(t, 1, res.Reminders)

	c, err := f.customers.GetByID(ctx, "UNPAID")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerStatusSuspended, c.Status)

	isolated := f.publisher.ofType(events.CustomerIsolated)
	require.Len(t, isolated, 1)
	assert.Equal(t, "INV-2026-0001", isolated[0].InvoiceID)
	assert.Len(t, f.publisher.ofType(events.InvoiceReminderDue), 1)
	assert.Equal(t, 1, f.cache.count())

	// a second sweep finds nothing: the customer is no longer ACTIVE
	again, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Isolated)
}

func TestIsolation_SweepDisabledOnlyReports(t *testing.T) {
	ctx := context.Background()
	f, svc := newIsolationFixture(t, day(2026, time.October, 5), IsolationSettings{Enabled: false, Time: "00:00"})
	f.addCustomer(t, "UNPAID", 5, 150000, domain.CustomerStatusActive)
	f.addInvoice(t, unpaidInvoice("INV-2026-0001", "UNPAID", 150000, time.Date(2026, time.October, 5, 0, 0, 0, 0, wib)))

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Targets, 1)
	assert.Empty(t, res.Isolated)

	c, err := f.customers.GetByID(ctx, "UNPAID")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerStatusActive, c.Status)

	logs, err := f.logs.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LogLevelWarning, logs[0].Level)
}

func TestIsolation_ApplyIgnoresEnabledFlag(t *testing.T) {
	ctx := context.Background()
	f, svc := newIsolationFixture(t, day(2026, time.October, 5), IsolationSettings{Enabled: false, Time: "00:00"})
	f.addCustomer(t, "UNPAID", 5, 150000, domain.CustomerStatusActive)
	f.addInvoice(t, unpaidInvoice("INV-2026-0001", "UNPAID", 150000, time.Date(2026, time.October, 5, 0, 0, 0, 0, wib)))

	isolated, err := svc.Apply(ctx)
	require.NoError(t, err)
	assert.Len(t, isolated, 1)
}

func TestIsolation_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	_, svc := newIsolationFixture(t, day(2026, time.October, 5), IsolationSettings{Enabled: true, Time: "00:00", GraceDays: 3})
	listener := &stubListener{}
	svc.SetListener(listener)

	_, err := svc.UpdateSettings(ctx, IsolationSettings{Enabled: true, Time: "25:00"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateSettings(ctx, IsolationSettings{Enabled: true, Time: "01:00", GraceDays: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.UpdateSettings(ctx, IsolationSettings{Enabled: false, Time: "01:30", GraceDays: 5})
	require.NoError(t, err)
	assert.Equal(t, "01:30", got.Time)
	assert.Equal(t, []string{"01:30"}, listener.calls)
	assert.Equal(t, got, svc.Settings())

	// same time, no reschedule
	_, err = svc.UpdateSettings(ctx, IsolationSettings{Enabled: true, Time: "01:30", GraceDays: 5})
	require.NoError(t, err)
	assert.Len(t, listener.calls, 1)
}

func TestIsolation_UpdateSettingsRollsBackOnRescheduleFailure(t *testing.T) {
	ctx := context.Background()
	initial := IsolationSettings{Enabled: true, Time: "00:00", GraceDays: 3}
	_, svc := newIsolationFixture(t, day(2026, time.October, 5), initial)
	svc.SetListener(&stubListener{err: errors.New("cron rejected spec")})

	_, err := svc.UpdateSettings(ctx, IsolationSettings{Enabled: true, Time: "02:00", GraceDays: 3})
	require.Error(t, err)
	assert.Equal(t, initial, svc.Settings())
}
