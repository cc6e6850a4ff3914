package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Payment sources, recorded on metrics and in the activity log
const (
	PaymentSourceAdmin    = "admin"
	PaymentSourceCheckout = "checkout"
	PaymentSourceWebhook  = "webhook"
)

// PaymentResult is the outcome of a payment confirmation
type PaymentResult struct {
	Invoice *domain.Invoice `json:"invoice"`
	// Changed is false when the invoice was already PAID
	Changed bool `json:"changed"`
}

// PaymentService moves invoices to PAID
type PaymentService struct {
	invoices  domain.InvoiceRepository
	clock     clock.Clock
	publisher events.Publisher
	activity  *ActivityLog
	cache     DashboardInvalidator
	metrics   *telemetry.BillingMetrics
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	invoices domain.InvoiceRepository,
	clk clock.Clock,
	publisher events.Publisher,
	activity *ActivityLog,
	cache DashboardInvalidator,
	metrics *telemetry.BillingMetrics,
) *PaymentService {
	return &PaymentService{
		invoices:  invoices,
		clock:     clk,
		publisher: publisher,
		activity:  activity,
		cache:     cache,
		metrics:   metrics,
	}
}

// ConfirmPayment marks the invoice PAID. Unknown ids fail with
// ErrInvoiceNotFound; an invoice that is already PAID is returned unchanged
// and no side effects are repeated.
func (s *PaymentService) ConfirmPayment(ctx context.Context, id string) (*PaymentResult, error) {
	return s.confirm(ctx, id, PaymentSourceAdmin)
}

// ConfirmPaymentFrom is ConfirmPayment with the originating channel recorded
func (s *PaymentService) ConfirmPaymentFrom(ctx context.Context, id, source string) (*PaymentResult, error) {
	return s.confirm(ctx, id, source)
}

func (s *PaymentService) confirm(ctx context.Context, id, source string) (*PaymentResult, error) {
	ctx, span := otel.Tracer("billing").Start(ctx, "billing.ConfirmPayment")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id), attribute.String("payment.source", source))

	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Wrapf(domain.ErrInvoiceNotFound, "invoice %s", id)
		}
		return nil, errors.Wrap(err, "get invoice")
	}
	if inv.IsPaid() {
		span.SetAttributes(attribute.Bool("payment.changed", false))
		return &PaymentResult{Invoice: inv, Changed: false}, nil
	}

	now := s.clock.Now()
	changed, err := s.invoices.UpdateStatus(ctx, id, domain.InvoiceStatusPaid, now)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "update invoice status")
	}

	// re-read so the caller sees what is stored, including a concurrent winner's PaidAt
	inv, err = s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "reload invoice")
	}
	span.SetAttributes(attribute.Bool("payment.changed", changed))
	if !changed {
		return &PaymentResult{Invoice: inv, Changed: false}, nil
	}

	s.afterPayment(ctx, inv, source)
	return &PaymentResult{Invoice: inv, Changed: true}, nil
}

func (s *PaymentService) afterPayment(ctx context.Context, inv *domain.Invoice, source string) {
	log := logger.FromContext(ctx).With(zap.String("invoice_id", inv.ID))

	s.metrics.PaymentConfirmed(ctx, source)
	s.activity.Info(ctx, "Billing", "Payment received for %s (%s, Rp %s) via %s",
		inv.ID, inv.CustomerName, domain.FormatRupiah(inv.Amount), source)

	if s.publisher != nil {
		evt := events.New(events.PaymentConfirmed, inv.CustomerID, inv.ID, s.clock.Now())
		if err := s.publisher.Publish(ctx, evt); err != nil {
			log.Warn("failed to publish payment event", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.InvalidateDashboard(ctx); err != nil {
			log.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
}
