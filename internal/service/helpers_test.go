package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*3600)

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu   sync.Mutex
	evts []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evts = append(p.evts, evts...)
	return nil
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.evts {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// countingInvalidator counts dashboard invalidations
type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) InvalidateDashboard(ctx context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// billingFixture wires the engine against memory stores at a fixed date
type billingFixture struct {
	clock     clock.Clock
	customers *repository.MemoryCustomerRepository
	invoices  *repository.MemoryInvoiceRepository
	logs      *repository.MemorySystemLogRepository
	publisher *recordingPublisher
	cache     *countingInvalidator
	activity  *ActivityLog
	generator *InvoiceGenerator
	payments  *PaymentService
	queries   *InvoiceQueries
}

func newBillingFixture(t *testing.T, today time.Time, policy BillingPolicy) *billingFixture {
	t.Helper()
	f := &billingFixture{
		clock:     clock.Fixed(today),
		customers: repository.NewMemoryCustomerRepository(),
		invoices:  repository.NewMemoryInvoiceRepository(),
		logs:      repository.NewMemorySystemLogRepository(100),
		publisher: &recordingPublisher{},
		cache:     &countingInvalidator{},
	}
	f.activity = NewActivityLog(f.logs, f.clock)
	f.generator = NewInvoiceGenerator(f.customers, f.invoices, repository.NewMemoryInvoiceSequence(),
		f.clock, f.publisher, f.activity, f.cache, nil, policy)
	f.payments = NewPaymentService(f.invoices, f.clock, f.publisher, f.activity, f.cache, nil)
	f.queries = NewInvoiceQueries(f.customers, f.invoices, f.clock)
	return f
}

func (f *billingFixture) addCustomer(t *testing.T, id string, cycleDay int, fee int64, status domain.CustomerStatus) *domain.Customer {
	t.Helper()
	c := &domain.Customer{
		ID:              id,
		Name:            "Customer " + id,
		Username:        id,
		Phone:           "081200000000",
		Status:          status,
		MonthlyFee:      fee,
		BillingCycleDay: cycleDay,
		ServiceType:     domain.ServiceTypePPPoE,
	}
	require.NoError(t, f.customers.Create(context.Background(), c))
	return c
}

func (f *billingFixture) addInvoice(t *testing.T, inv *domain.Invoice) {
	t.Helper()
	require.NoError(t, f.invoices.AppendInvoices(context.Background(), []*domain.Invoice{inv}))
}

func defaultPolicy() BillingPolicy {
	return BillingPolicy{BillSuspended: true, CheckoutBaseURL: "https://pay.example.com/"}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, wib)
}
