package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/events"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventConsumer feeds queued billing events to a handler until ctx is done
type EventConsumer interface {
	Consume(ctx context.Context, handle events.Handler) error
}

var templateForEvent = map[events.Type]domain.TemplateType{
	events.InvoiceGenerated:   domain.TemplateInvoice,
	events.InvoiceReminderDue: domain.TemplateReminder,
	events.CustomerIsolated:   domain.TemplateSuspend,
	events.PaymentConfirmed:   domain.TemplateSuccess,
}

// NotificationWorker turns billing events into WhatsApp messages and records
// each attempt on the invoice
type NotificationWorker struct {
	consumer  EventConsumer
	customers domain.CustomerRepository
	invoices  domain.InvoiceRepository
	templates *TemplateService
	sender    MessageSender
	clock     clock.Clock
	metrics   *telemetry.BillingMetrics
}

// NewNotificationWorker creates a new NotificationWorker
func NewNotificationWorker(
	consumer EventConsumer,
	customers domain.CustomerRepository,
	invoices domain.InvoiceRepository,
	templates *TemplateService,
	sender MessageSender,
	clk clock.Clock,
	metrics *telemetry.BillingMetrics,
) *NotificationWorker {
	return &NotificationWorker{
		consumer:  consumer,
		customers: customers,
		invoices:  invoices,
		templates: templates,
		sender:    sender,
		clock:     clk,
		metrics:   metrics,
	}
}

// Run consumes events until ctx is cancelled
func (w *NotificationWorker) Run(ctx context.Context) error {
	logger.FromContext(ctx).Info("notification worker started")
	return w.consumer.Consume(ctx, w.Handle)
}

// Handle delivers the message for one event. A failed send is recorded as a
// FAILED notification and is not returned as an error.
func (w *NotificationWorker) Handle(ctx context.Context, evt events.Event) error {
	tplType, ok := templateForEvent[evt.Type]
	if !ok {
		return errors.Newf("unsupported event type %q", evt.Type)
	}

	ctx, span := otel.Tracer("billing").Start(ctx, "billing.Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(evt.Type)),
		attribute.String("invoice.id", evt.InvoiceID),
	)
	log := logger.FromContext(ctx).With(
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.String("invoice_id", evt.InvoiceID),
	)

	inv, err := w.invoices.GetByID(ctx, evt.InvoiceID)
	if err != nil {
		return errors.Wrapf(err, "load invoice %s", evt.InvoiceID)
	}
	customer, err := w.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return errors.Wrapf(err, "load customer %s", inv.CustomerID)
	}
	text, err := w.templates.Render(ctx, tplType, inv)
	if err != nil {
		return err
	}

	status := domain.NotificationSent
	if err := w.sender.Send(ctx, customer.Phone, text); err != nil {
		status = domain.NotificationFailed
		span.RecordError(err)
		log.Warn("notification delivery failed", zap.Error(err))
	}

	kind := tplType.NotificationType()
	entry := domain.NotificationLog{
		ID:        ulid.Make().String(),
		Type:      kind,
		Timestamp: w.clock.Now(),
		Status:    status,
	}
	if err := w.invoices.AppendNotification(ctx, inv.ID, entry); err != nil {
		return errors.Wrap(err, "record notification")
	}
	w.metrics.NotificationSent(ctx, string(kind), status)
	log.Info("notification processed", zap.String("status", status))
	return nil
}
