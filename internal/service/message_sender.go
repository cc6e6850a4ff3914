package service

import (
	"context"

	"github.com/phbiling/isp-billing/internal/infrastructure/whatsapp"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

// MessageSender delivers a text message to a customer phone
type MessageSender interface {
	Send(ctx context.Context, phone, text string) error
}

// WhatsAppSender sends through the WhatsApp gateway
type WhatsAppSender struct {
	client *whatsapp.Client
}

// NewWhatsAppSender creates a new WhatsAppSender
func NewWhatsAppSender(client *whatsapp.Client) *WhatsAppSender {
	return &WhatsAppSender{client: client}
}

func (s *WhatsAppSender) Send(ctx context.Context, phone, text string) error {
	resp, err := s.client.SendText(ctx, phone, text)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("whatsapp message accepted", zap.String("message_id", resp.MessageID))
	return nil
}

// LogSender only logs messages. Used when no gateway is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, phone, text string) error {
	logger.FromContext(ctx).Info("whatsapp message (not sent, no gateway configured)",
		zap.String("phone", phone),
		zap.Int("length", len(text)),
	)
	return nil
}
