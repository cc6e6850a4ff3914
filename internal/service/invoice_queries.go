package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
)

// IsOverdue reports whether inv is unpaid and today is past its due date
func IsOverdue(inv *domain.Invoice, today time.Time) bool {
	return inv.IsOverdue(today)
}

// EffectiveStatus is the single source of truth for displayed invoice status
func EffectiveStatus(inv *domain.Invoice, today time.Time) domain.InvoiceStatus {
	return inv.EffectiveStatus(today)
}

// DueTodayForSuspension returns ACTIVE customers whose due day this month is
// today and who hold at least one unpaid invoice. Cycle days past the end of
// the month fall on its last day, matching DueDate.
func DueTodayForSuspension(customers []*domain.Customer, invoices []*domain.Invoice, today time.Time) []*domain.Customer {
	unpaid := make(map[string]struct{})
	for _, inv := range invoices {
		if !inv.IsPaid() {
			unpaid[inv.CustomerID] = struct{}{}
		}
	}

	day := today.Day()
	out := []*domain.Customer{}
	for _, c := range customers {
		if c.Status != domain.CustomerStatusActive {
			continue
		}
		if domain.EffectiveDueDay(c.BillingCycleDay, today.Year(), today.Month()) != day {
			continue
		}
		if _, ok := unpaid[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// MonthlyRevenue sums the amounts of PAID invoices
func MonthlyRevenue(invoices []*domain.Invoice) int64 {
	var total int64
	for _, inv := range invoices {
		if inv.IsPaid() {
			total += inv.Amount
		}
	}
	return total
}

// InvoiceView is an invoice as readers see it, with its derived status
type InvoiceView struct {
	*domain.Invoice
	EffectiveStatus domain.InvoiceStatus `json:"effective_status"`
	DaysOverdue     int                  `json:"days_overdue,omitempty"`
}

// InvoiceFilter narrows ListInvoices. Zero values match everything.
type InvoiceFilter struct {
	Status     domain.InvoiceStatus // matched against the effective status
	CustomerID string
	PeriodKey  string
	Search     string // invoice id or customer name
}

// InvoiceQueries serves read-side invoice views
type InvoiceQueries struct {
	customers domain.CustomerRepository
	invoices  domain.InvoiceRepository
	clock     clock.Clock
}

// NewInvoiceQueries creates a new InvoiceQueries
func NewInvoiceQueries(customers domain.CustomerRepository, invoices domain.InvoiceRepository, clk clock.Clock) *InvoiceQueries {
	return &InvoiceQueries{customers: customers, invoices: invoices, clock: clk}
}

// Today is the current business date
func (q *InvoiceQueries) Today() time.Time {
	return domain.DateOf(q.clock.Now())
}

// View derives the displayed status of inv for today
func (q *InvoiceQueries) View(inv *domain.Invoice, today time.Time) InvoiceView {
	v := InvoiceView{Invoice: inv, EffectiveStatus: inv.EffectiveStatus(today)}
	if v.EffectiveStatus == domain.InvoiceStatusOverdue {
		due := domain.DateOf(inv.DueDate.In(today.Location()))
		v.DaysOverdue = int(domain.DateOf(today).Sub(due).Hours() / 24)
	}
	return v
}

// ListInvoices returns invoices newest first with derived statuses
func (q *InvoiceQueries) ListInvoices(ctx context.Context, f InvoiceFilter) ([]InvoiceView, error) {
	invoices, err := q.invoices.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}

	today := q.Today()
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
			continue
		}
		if f.PeriodKey != "" && inv.PeriodKey != f.PeriodKey {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(inv.ID), search) &&
			!strings.Contains(strings.ToLower(inv.CustomerName), search) {
			continue
		}
		v := q.View(inv, today)
		if f.Status != "" && v.EffectiveStatus != f.Status {
			continue
		}
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// GetInvoice returns one invoice view
func (q *InvoiceQueries) GetInvoice(ctx context.Context, id string) (*InvoiceView, error) {
	inv, err := q.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := q.View(inv, q.Today())
	return &v, nil
}

// IsolationCandidates lists customers due for suspension today
func (q *InvoiceQueries) IsolationCandidates(ctx context.Context) ([]*domain.Customer, error) {
	customers, err := q.customers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	invoices, err := q.invoices.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}
	return DueTodayForSuspension(customers, invoices, q.Today()), nil
}
