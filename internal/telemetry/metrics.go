package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "phbiling/billing"

// BillingMetrics are the engine counters. The instruments come from the
// global meter provider, which is a no-op until Initialize installs one.
type BillingMetrics struct {
	invoicesGenerated metric.Int64Counter
	paymentsConfirmed metric.Int64Counter
	notifications     metric.Int64Counter
	customersIsolated metric.Int64Counter
}

// NewBillingMetrics registers the billing counters
func NewBillingMetrics() (*BillingMetrics, error) {
	meter := otel.Meter(meterName)

	generated, err := meter.Int64Counter("billing.invoices.generated",
		metric.WithDescription("Invoices created by bulk generation"))
	if err != nil {
		return nil, err
	}
	paid, err := meter.Int64Counter("billing.payments.confirmed",
		metric.WithDescription("Invoices moved to PAID"))
	if err != nil {
		return nil, err
	}
	notified, err := meter.Int64Counter("billing.notifications",
		metric.WithDescription("Outbound customer messages by type and result"))
	if err != nil {
		return nil, err
	}
	isolated, err := meter.Int64Counter("billing.customers.isolated",
		metric.WithDescription("Customers suspended for non-payment"))
	if err != nil {
		return nil, err
	}

	return &BillingMetrics{
		invoicesGenerated: generated,
		paymentsConfirmed: paid,
		notifications:     notified,
		customersIsolated: isolated,
	}, nil
}

// All methods accept a nil receiver so callers can run without metrics.

func (m *BillingMetrics) InvoicesGenerated(ctx context.Context, n int, period string) {
	if m == nil || n == 0 {
		return
	}
	m.invoicesGenerated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("period", period)))
}

func (m *BillingMetrics) PaymentConfirmed(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.paymentsConfirmed.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *BillingMetrics) NotificationSent(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", kind),
		attribute.String("status", status),
	))
}

func (m *BillingMetrics) CustomersIsolated(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.customersIsolated.Add(ctx, int64(n))
}
