package domain

import (
	"context"
	"time"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

// Only UNPAID and PAID are ever stored. OVERDUE is derived at read time
// from the due date, see Invoice.EffectiveStatus.
const (
	InvoiceStatusUnpaid  InvoiceStatus = "UNPAID"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// NotificationType identifies the message a notification log entry refers to
type NotificationType string

const (
	NotificationInvoice        NotificationType = "INVOICE"
	NotificationReminder       NotificationType = "REMINDER"
	NotificationIsolate        NotificationType = "ISOLATE"
	NotificationPaymentSuccess NotificationType = "PAYMENT_SUCCESS"
)

// Delivery results of an outbound message
const (
	NotificationSent   = "SENT"
	NotificationFailed = "FAILED"
)

// NotificationLog records one outbound message attempt for an invoice
type NotificationLog struct {
	ID        string           `bson:"id" json:"id"`
	Type      NotificationType `bson:"type" json:"type"`
	Timestamp time.Time        `bson:"timestamp" json:"timestamp"`
	Status    string           `bson:"status" json:"status"`
}

// Invoice is a billing record for one customer for one period.
// CustomerName and Amount are snapshots taken at generation time.
type Invoice struct {
	ID            string            `bson:"_id" json:"id"`
	CustomerID    string            `bson:"customer_id" json:"customer_id"`
	CustomerName  string            `bson:"customer_name" json:"customer_name"`
	Amount        int64             `bson:"amount" json:"amount"`
	DueDate       time.Time         `bson:"due_date" json:"due_date"`
	Period        string            `bson:"period" json:"period"`
	PeriodKey     string            `bson:"period_key" json:"period_key"`
	Status        InvoiceStatus     `bson:"status" json:"status"`
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	PaidAt        *time.Time        `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	PaymentURL    string            `bson:"payment_url,omitempty" json:"payment_url,omitempty"`
	Notifications []NotificationLog `bson:"notifications" json:"notifications"`
}

// IsPaid reports whether the invoice has been settled
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOverdue reports whether the invoice is unpaid and today is past its due date.
// Comparison is by calendar date; an invoice due today is not overdue.
func (i *Invoice) IsOverdue(today time.Time) bool {
	if i.IsPaid() {
		return false
	}
	return DateOf(today).After(DateOf(i.DueDate.In(today.Location())))
}

// EffectiveStatus is the status shown to readers: PAID, OVERDUE (derived) or UNPAID.
func (i *Invoice) EffectiveStatus(today time.Time) InvoiceStatus {
	switch {
	case i.IsPaid():
		return InvoiceStatusPaid
	case i.IsOverdue(today):
		return InvoiceStatusOverdue
	default:
		return InvoiceStatusUnpaid
	}
}

// Clone returns a deep copy so stored invoices are never aliased by callers
func (i *Invoice) Clone() *Invoice {
	cp := *i
	if i.PaidAt != nil {
		paid := *i.PaidAt
		cp.PaidAt = &paid
	}
	cp.Notifications = append([]NotificationLog{}, i.Notifications...)
	return &cp
}

// InvoiceRepository is the invoice store
type InvoiceRepository interface {
	List(ctx context.Context) ([]*Invoice, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	// AppendInvoices stores all invoices or none. Any id already present, or
	// repeated inside the batch, fails the whole call with ErrDuplicateInvoiceID.
	AppendInvoices(ctx context.Context, invoices []*Invoice) error
	// UpdateStatus sets the stored status and reports whether it changed.
	UpdateStatus(ctx context.Context, id string, status InvoiceStatus, at time.Time) (bool, error)
	AppendNotification(ctx context.Context, id string, entry NotificationLog) error
}
