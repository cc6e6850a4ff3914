package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// idAttempts bounds how many sequence numbers one invoice may burn on collisions
	idAttempts = 5
	// appendAttempts bounds full regeneration after the store rejects a batch
	appendAttempts = 3
)

// Skip reasons reported in GenerationResult.Skipped
const (
	SkipAlreadyInvoiced = "already invoiced for period"
	SkipSuspended       = "customer suspended"
	SkipInactive        = "customer inactive"
	SkipInvalid         = "customer record invalid"
)

// InvoiceSequence hands out per-year invoice numbers strictly greater than floor
type InvoiceSequence interface {
	Next(ctx context.Context, year int, floor int) (int, error)
}

// DashboardInvalidator drops cached dashboard summaries after a state change
type DashboardInvalidator interface {
	InvalidateDashboard(ctx context.Context) error
}

// BillingPolicy holds the generation knobs
type BillingPolicy struct {
	BillSuspended   bool
	BillInactive    bool
	CheckoutBaseURL string
}

// SkippedCustomer explains why a customer got no invoice in a run
type SkippedCustomer struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Reason       string `json:"reason"`
	Detail       string `json:"detail,omitempty"`
}

// GenerationResult is the outcome of one bulk generation run
type GenerationResult struct {
	Period   string            `json:"period"`
	Invoices []*domain.Invoice `json:"-"` // existing followed by created
	Created  []*domain.Invoice `json:"created"`
	Count    int               `json:"count"`
	Skipped  []SkippedCustomer `json:"skipped"`
}

// InvoiceGenerator produces one invoice per eligible customer for the current period
type InvoiceGenerator struct {
	customers domain.CustomerRepository
	invoices  domain.InvoiceRepository
	sequence  InvoiceSequence
	clock     clock.Clock
	publisher events.Publisher
	activity  *ActivityLog
	cache     DashboardInvalidator
	metrics   *telemetry.BillingMetrics
	policy    BillingPolicy
}

// NewInvoiceGenerator creates a new InvoiceGenerator. publisher, activity,
// cache and metrics may be nil.
func NewInvoiceGenerator(
	customers domain.CustomerRepository,
	invoices domain.InvoiceRepository,
	sequence InvoiceSequence,
	clk clock.Clock,
	publisher events.Publisher,
	activity *ActivityLog,
	cache DashboardInvalidator,
	metrics *telemetry.BillingMetrics,
	policy BillingPolicy,
) *InvoiceGenerator {
	policy.CheckoutBaseURL = strings.TrimRight(policy.CheckoutBaseURL, "/")
	return &InvoiceGenerator{
		customers: customers,
		invoices:  invoices,
		sequence:  sequence,
		clock:     clk,
		publisher: publisher,
		activity:  activity,
		cache:     cache,
		metrics:   metrics,
		policy:    policy,
	}
}

// Generate bills every eligible customer for the month containing today.
// The new invoices are stored atomically; on a duplicate id from a concurrent
// writer the whole run is rebuilt from a fresh read.
func (g *InvoiceGenerator) Generate(ctx context.Context) (*GenerationResult, error) {
	ctx, span := otel.Tracer("billing").Start(ctx, "billing.GenerateInvoices")
	defer span.End()
	log := logger.FromContext(ctx)

	var (
		result *GenerationResult
		err    error
	)
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		result, err = g.generateOnce(ctx)
		if err == nil || !errors.Is(err, domain.ErrDuplicateInvoiceID) {
			break
		}
		log.Warn("invoice batch collided, regenerating", zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.activity.Error(ctx, "Billing", "Invoice generation failed: %v", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("billing.period", result.Period),
		attribute.Int("billing.created", result.Count),
		attribute.Int("billing.skipped", len(result.Skipped)),
	)
	g.afterGenerate(ctx, result)
	return result, nil
}

func (g *InvoiceGenerator) generateOnce(ctx context.Context) (*GenerationResult, error) {
	today := domain.DateOf(g.clock.Now())
	year, month := today.Year(), today.Month()
	periodKey := domain.PeriodKey(today)

	customers, err := g.customers.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	existing, err := g.invoices.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}

	taken := make(map[string]struct{}, len(existing)+len(customers))
	billed := make(map[string]struct{})
	floor := 0
	for _, inv := range existing {
		taken[inv.ID] = struct{}{}
		if inv.PeriodKey == periodKey {
			billed[inv.CustomerID] = struct{}{}
		}
		if y, seq, ok := domain.ParseInvoiceID(inv.ID); ok && y == year && int(seq) > floor {
			floor = int(seq)
		}
	}

	result := &GenerationResult{
		Period:  domain.PeriodLabel(today),
		Created: []*domain.Invoice{},
		Skipped: []SkippedCustomer{},
	}

	for _, c := range customers {
		if reason, detail := g.skipReason(c, billed); reason != "" {
			result.Skipped = append(result.Skipped, SkippedCustomer{
				CustomerID:   c.ID,
				CustomerName: c.Name,
				Reason:       reason,
				Detail:       detail,
			})
			continue
		}

		id, err := g.nextID(ctx, year, floor, taken)
		if err != nil {
			return nil, err
		}
		taken[id] = struct{}{}

		result.Created = append(result.Created, &domain.Invoice{
			ID:            id,
			CustomerID:    c.ID,
			CustomerName:  c.Name,
			Amount:        c.MonthlyFee,
			DueDate:       domain.DueDate(year, month, c.BillingCycleDay, today.Location()),
			Period:        result.Period,
			PeriodKey:     periodKey,
			Status:        domain.InvoiceStatusUnpaid,
			CreatedAt:     today,
			PaymentURL:    g.paymentURL(id),
			Notifications: []domain.NotificationLog{},
		})
		// one customer, one invoice per run even if the directory lists it twice
		billed[c.ID] = struct{}{}
	}

	if len(result.Created) > 0 {
		if err := g.invoices.AppendInvoices(ctx, result.Created); err != nil {
			return nil, errors.Wrap(err, "append invoices")
		}
	}

	result.Count = len(result.Created)
	result.Invoices = append(existing, result.Created...)
	return result, nil
}

// skipReason returns one of the Skip constants, or "" when c is billable.
// detail carries the validation message for SkipInvalid.
func (g *InvoiceGenerator) skipReason(c *domain.Customer, billed map[string]struct{}) (reason, detail string) {
	if _, ok := billed[c.ID]; ok {
		return SkipAlreadyInvoiced, ""
	}
	switch c.Status {
	case domain.CustomerStatusSuspended:
		if !g.policy.BillSuspended {
			return SkipSuspended, ""
		}
	case domain.CustomerStatusInactive:
		if !g.policy.BillInactive {
			return SkipInactive, ""
		}
	}
	if err := c.CheckBillable(); err != nil {
		return SkipInvalid, err.Error()
	}
	return "", ""
}

// nextID draws sequence numbers until one is free in taken
func (g *InvoiceGenerator) nextID(ctx context.Context, year, floor int, taken map[string]struct{}) (string, error) {
	for i := 0; i < idAttempts; i++ {
		seq, err := g.sequence.Next(ctx, year, floor)
		if err != nil {
			return "", errors.Wrap(err, "next invoice sequence")
		}
		id := domain.FormatInvoiceID(year, int64(seq))
		if _, used := taken[id]; !used {
			return id, nil
		}
	}
	return "", errors.Wrapf(domain.ErrDuplicateInvoiceID, "no free invoice id after %d attempts", idAttempts)
}

func (g *InvoiceGenerator) paymentURL(id string) string {
	if g.policy.CheckoutBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/pay/%s", g.policy.CheckoutBaseURL, id)
}

func (g *InvoiceGenerator) afterGenerate(ctx context.Context, result *GenerationResult) {
	log := logger.FromContext(ctx)

	g.activity.Info(ctx, "Billing", "Generated %d invoices for period %s", result.Count, result.Period)
	g.metrics.InvoicesGenerated(ctx, result.Count, result.Period)

	if result.Count == 0 {
		return
	}

	if g.publisher != nil {
		now := g.clock.Now()
		evts := make([]events.Event, 0, len(result.Created))
		for _, inv := range result.Created {
			evts = append(evts, events.New(events.InvoiceGenerated, inv.CustomerID, inv.ID, now))
		}
		if err := g.publisher.Publish(ctx, evts...); err != nil {
			log.Warn("failed to publish invoice events", zap.Error(err))
		}
	}

	if g.cache != nil {
		if err := g.cache.InvalidateDashboard(ctx); err != nil {
			log.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
}
