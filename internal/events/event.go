// Package events carries billing lifecycle events from the engine to the
// asynchronous notification worker.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a billing event
type Type string

const (
	InvoiceGenerated   Type = "invoice.generated"
	InvoiceReminderDue Type = "invoice.reminder_due"
	PaymentConfirmed   Type = "payment.confirmed"
	CustomerIsolated   Type = "customer.isolated"
)

// Event is one fact emitted by the engine. Every event names the invoice the
// resulting customer message is about; for CustomerIsolated that is the oldest unpaid one.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	InvoiceID  string    `json:"invoice_id,omitempty"`
	CustomerID string    `json:"customer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh ULID
func New(t Type, customerID, invoiceID string, at time.Time) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       t,
		InvoiceID:  invoiceID,
		CustomerID: customerID,
		OccurredAt: at,
	}
}

// Publisher hands events to the dispatcher. Publishing must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event) error
}

// Handler processes one consumed event
type Handler func(ctx context.Context, evt Event) error
