package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_BuildsOneInvoicePerCustomer(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addCustomer(t, "CUST001", 5, 150000, domain.CustomerStatusActive)
	f.addCustomer(t, "CUST002", 20, 250000, domain.CustomerStatusActive)

	res, err := f.generator.Generate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "Oktober 2026", res.Period)
	require.Len(t, res.Created, 2)

	first := res.Created[0]
	assert.Equal(t, "INV-2026-0001", first.ID)
	assert.Equal(t, "CUST001", first.CustomerID)
	assert.Equal(t, "Customer CUST001", first.CustomerName)
	assert.Equal(t, int64(150000), first.Amount)
	assert.Equal(t, "2026-10-05", first.DueDate.Format("2006-01-02"))
	assert.Equal(t, "2026-10", first.PeriodKey)
	assert.Equal(t, domain.InvoiceStatusUnpaid, first.Status)
	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, wib), first.CreatedAt)
	assert.Equal(t, "https://pay.example.com/pay/INV-2026-0001", first.PaymentURL)
	assert.Empty(t, first.Notifications)
	assert.Nil(t, first.PaidAt)

	assert.Equal(t, "INV-2026-0002", res.Created[1].ID)
	assert.Len(t, f.publisher.ofType(events.InvoiceGenerated), 2)
	assert.Equal(t, 1, f.cache.count())

	logs, err := f.logs.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Generated 2 invoices for period Oktober 2026", logs[0].Message)
}

func TestGenerate_AppendsToExistingCollection(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 1), defaultPolicy())

	for i := 1; i <= 3; i++ {
		f.addInvoice(t, &domain.Invoice{
			ID:         domain.FormatInvoiceID(2026, int64(i)),
			CustomerID: fmt.Sprintf("OLD%d", i),
			PeriodKey:  "2026-09",
			Status:     domain.InvoiceStatusPaid,
		})
	}
	f.addCustomer(t, "CUST001", 5, 150000, domain.CustomerStatusActive)
	f.addCustomer(t, "CUST002", 10, 250000, domain.CustomerStatusActive)

	res, err := f.generator.Generate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Len(t, res.Invoices, 3+2)

	stored, err := f.invoices.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 5)

	// numbering continues after the highest existing sequence of the year
	assert.Equal(t, "INV-2026-0004", res.Created[0].ID)
	assert.Equal(t, "INV-2026-0005", res.Created[1].ID)
}

func TestGenerate_ClampsDueDateToMonthEnd(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		cycle int
		want  string
	}{
		{name: "february", today: day(2026, time.February, 1), cycle: 31, want: "2026-02-28"},
		{name: "leap february", today: day(2024, time.February, 1), cycle: 30, want: "2024-02-29"},
		{name: "april", today: day(2026, time.April, 1), cycle: 31, want: "2026-04-30"},
		{name: "no clamp", today: day(2026, time.March, 1), cycle: 31, want: "2026-03-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBillingFixture(t, tt.today, defaultPolicy())
			f.addCustomer(t, "CUST001", tt.cycle, 150000, domain.CustomerStatusActive)

			res, err := f.generator.Generate(context.Background())
			require.NoError(t, err)
			require.Len(t, res.Created, 1)
			assert.Equal(t, tt.want, res.Created[0].DueDate.Format("2006-01-02"))
		})
	}
}

func TestGenerate_UniqueIDsForTenThousandCustomers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping bulk generation in short mode")
	}
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.May, 2), defaultPolicy())
	for i := 0; i < 10000; i++ {
		f.addCustomer(t, fmt.Sprintf("CUST%05d", i), i%31+1, 150000, domain.CustomerStatusActive)
	}

	res, err := f.generator.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, 10000, res.Count)

	seen := make(map[string]struct{}, res.Count)
	for _, inv := range res.Created {
		_, dup := seen[inv.ID]
		require.False(t, dup, "duplicate invoice id %s", inv.ID)
		seen[inv.ID] = struct{}{}
	}
	assert.Equal(t, "INV-2026-10000", res.Created[len(res.Created)-1].ID)
}

func TestGenerate_SkipsAlreadyInvoicedCustomers(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addCustomer(t, "CUST001", 5, 150000, domain.CustomerStatusActive)

	_, err := f.generator.Generate(ctx)
	require.NoError(t, err)

	res, err := f.generator.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkipAlreadyInvoiced, res.Skipped[0].Reason)

	stored, err := f.invoices.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	// no second batch, so no second invalidation
	assert.Equal(t, 1, f.cache.count())
}

func TestGenerate_StatusPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      BillingPolicy
		wantBilled  []string
		wantReasons map[string]string
	}{
		{
			name:       "suspended billed by default",
			policy:     BillingPolicy{BillSuspended: true},
			wantBilled: []string{"ACT", "SUS"},
			wantReasons: map[string]string{
				"INA": SkipInactive,
			},
		},
		{
			name:       "suspended skipped",
			policy:     BillingPolicy{},
			wantBilled: []string{"ACT"},
			wantReasons: map[string]string{
				"SUS": SkipSuspended,
				"INA": SkipInactive,
			},
		},
		{
			name:        "everyone billed",
			policy:      BillingPolicy{BillSuspended: true, BillInactive: true},
			wantBilled:  []string{"ACT", "SUS", "INA"},
			wantReasons: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBillingFixture(t, day(2026, time.October, 16), tt.policy)
			f.addCustomer(t, "ACT", 5, 100000, domain.CustomerStatusActive)
			f.addCustomer(t, "SUS", 5, 100000, domain.CustomerStatusSuspended)
			f.addCustomer(t, "INA", 5, 100000, domain.CustomerStatusInactive)

			res, err := f.generator.Generate(context.Background())
			require.NoError(t, err)

			var billed []string
			for _, inv := range res.Created {
				billed = append(billed, inv.CustomerID)
			}
			assert.Equal(t, tt.wantBilled, billed)

			reasons := map[string]string{}
			for _, s := range res.Skipped {
				reasons[s.CustomerID] = s.Reason
			}
			assert.Equal(t, tt.wantReasons, reasons)
		})
	}
}

func TestGenerate_SkipsInvalidCustomer(t *testing.T) {
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addCustomer(t, "GOOD", 5, 100000, domain.CustomerStatusActive)
	f.addCustomer(t, "BAD", 0, 100000, domain.CustomerStatusActive)

	res, err := f.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "BAD", res.Skipped[0].CustomerID)
	assert.Equal(t, SkipInvalid, res.Skipped[0].Reason)
	assert.Contains(t, res.Skipped[0].Detail, "billing cycle day")
}

// listBarrier holds the first n List calls until all of them have read, so
// overlapping runs see the same snapshot
type listBarrier struct {
	*repository.MemoryInvoiceRepository
	mu      sync.Mutex
	pending int
	ready   sync.WaitGroup
}

func newListBarrier(repo *repository.MemoryInvoiceRepository, n int) *listBarrier {
	b := &listBarrier{MemoryInvoiceRepository: repo, pending: n}
	b.ready.Add(n)
	return b
}

func (b *listBarrier) List(ctx context.Context) ([]*domain.Invoice, error) {
	invoices, err := b.MemoryInvoiceRepository.List(ctx)

	b.mu.Lock()
	hold := b.pending > 0
	if hold {
		b.pending--
	}
	b.mu.Unlock()

	if hold {
		b.ready.Done()
		b.ready.Wait()
	}
	return invoices, err
}

func TestGenerate_OverlappingRunsBillOncePerPeriod(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addCustomer(t, "CUST001", 5, 150000, domain.CustomerStatusActive)

	store := newListBarrier(f.invoices, 2)
	generator := NewInvoiceGenerator(f.customers, store, repository.NewMemoryInvoiceSequence(),
		f.clock, f.publisher, f.activity, f.cache, nil, defaultPolicy())

	results := make([]*GenerationResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := generator.Generate(ctx)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	all, err := f.invoices.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "CUST001", all[0].CustomerID)

	created := 0
	for _, res := range results {
		require.NotNil(t, res)
		created += res.Count
		if res.Count == 0 {
			require.Len(t, res.Skipped, 1)
			assert.Equal(t, SkipAlreadyInvoiced, res.Skipped[0].Reason)
		}
	}
	assert.Equal(t, 1, created)
}

func TestGenerate_NoCustomers(t *testing.T) {
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())

	res, err := f.generator.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Created)
	assert.Empty(t, f.publisher.ofType(events.InvoiceGenerated))
}

func TestGenerate_AmountIsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	c := f.addCustomer(t, "CUST001", 5, 150000, domain.CustomerStatusActive)

	res, err := f.generator.Generate(ctx)
	require.NoError(t, err)
	id := res.Created[0].ID

	c.MonthlyFee = 999000
	c.Name = "Renamed"
	require.NoError(t, f.customers.Update(ctx, c))

	inv, err := f.invoices.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), inv.Amount)
	assert.Equal(t, "Customer CUST001", inv.CustomerName)

	_, err = f.payments.ConfirmPayment(ctx, id)
	require.NoError(t, err)
	inv, err = f.invoices.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), inv.Amount)
}

// scriptedSequence replays fixed numbers, then counts up from the last one
type scriptedSequence struct {
	script []int
	last   int
}

func (s *scriptedSequence) Next(ctx context.Context, year, floor int) (int, error) {
	if len(s.script) > 0 {
		s.last = s.script[0]
		s.script = s.script[1:]
		return s.last, nil
	}
	s.last++
	return s.last, nil
}

func TestGenerate_RetriesTakenSequenceNumbers(t *testing.T) {
	ctx := context.Background()
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addInvoice(t, &domain.Invoice{ID: "INV-2026-0007", CustomerID: "OLD", PeriodKey: "2026-09"})
	f.addCustomer(t, "A", 5, 1, domain.CustomerStatusActive)
	f.addCustomer(t, "B", 5, 1, domain.CustomerStatusActive)

	seq := &scriptedSequence{script: []int{7, 8, 8, 7}}
	gen := NewInvoiceGenerator(f.customers, f.invoices, seq, f.clock, nil, nil, nil, nil, defaultPolicy())

	res, err := gen.Generate(ctx)
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, "INV-2026-0008", res.Created[0].ID)
	assert.Equal(t, "INV-2026-0009", res.Created[1].ID)
}

func TestGenerate_GivesUpWhenSequenceIsStuck(t *testing.T) {
	f := newBillingFixture(t, day(2026, time.October, 16), defaultPolicy())
	f.addInvoice(t, &domain.Invoice{ID: "INV-2026-0001", CustomerID: "OLD", PeriodKey: "2026-09"})
	f.addCustomer(t, "A", 5, 1, domain.CustomerStatusActive)

	stuck := &scriptedSequence{}
	for i := 0; i < idAttempts*appendAttempts; i++ {
		stuck.script = append(stuck.script, 1)
	}
	gen := NewInvoiceGenerator(f.customers, f.invoices, stuck, f.clock, nil, nil, nil, nil, defaultPolicy())

	_, err := gen.Generate(context.Background())
	require.ErrorIs(t, err, domain.ErrDuplicateInvoiceID)

	stored, err := f.invoices.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
