package domain

import (
	"context"
	"time"
)

// TemplateType identifies a WhatsApp message template
type TemplateType string

const (
	TemplateInvoice  TemplateType = "invoice"
	TemplateReminder TemplateType = "reminder"
	TemplateSuspend  TemplateType = "suspend"
	TemplateSuccess  TemplateType = "success"
)

// TemplateTypes lists every supported template in display order
var TemplateTypes = []TemplateType{TemplateInvoice, TemplateReminder, TemplateSuspend, TemplateSuccess}

// Valid reports whether t is a known template type
func (t TemplateType) Valid() bool {
	for _, known := range TemplateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationType maps a template to the notification log type it produces
func (t TemplateType) NotificationType() NotificationType {
	switch t {
	case TemplateReminder:
		return NotificationReminder
	case TemplateSuspend:
		return NotificationIsolate
	case TemplateSuccess:
		return NotificationPaymentSuccess
	default:
		return NotificationInvoice
	}
}

// MessageTemplate is an editable WhatsApp message body with {{placeholder}} fields:
// nama, bulan, jumlah, jatuh_tempo, link_pembayaran
type MessageTemplate struct {
	Type      TemplateType `bson:"_id" json:"type"`
	Content   string       `bson:"content" json:"content"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
}

// TemplateRepository stores message templates keyed by type
type TemplateRepository interface {
	Get(ctx context.Context, t TemplateType) (*MessageTemplate, error)
	List(ctx context.Context) ([]*MessageTemplate, error)
	Upsert(ctx context.Context, tpl *MessageTemplate) error
}
