package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

// Checkout payment methods
const (
	MethodQRIS      = "QRIS"
	MethodGoPay     = "GOPAY"
	MethodBCAVA     = "BCA_VA"
	MethodMandiriVA = "MANDIRI_VA"
	MethodBNIVA     = "BNI_VA"
)

var checkoutMethods = map[string]string{
	MethodQRIS:      "QRS",
	MethodGoPay:     "GPY",
	MethodBCAVA:     "BCA",
	MethodMandiriVA: "MDR",
	MethodBNIVA:     "BNI",
}

// checkoutWindow is how long a checkout page stays payable
const checkoutWindow = 24 * time.Hour

// Webhook statuses
const (
	WebhookStatusPaid    = "PAID"
	WebhookStatusExpired = "EXPIRED"
	WebhookStatusFailed  = "FAILED"
)

var (
	// ErrUnknownMethod is returned for a payment method the checkout does not offer
	ErrUnknownMethod = errors.Mark(errors.New("unknown payment method"), domain.ErrValidation)
	// ErrBadSignature is returned when a webhook signature does not verify
	ErrBadSignature = errors.Mark(errors.New("invalid webhook signature"), domain.ErrUnauthorized)
)

// CheckoutPage is the public view behind an invoice payment link
type CheckoutPage struct {
	InvoiceID    string                `json:"invoice_id"`
	CustomerName string                `json:"customer_name"`
	Period       string                `json:"period"`
	Amount       int64                 `json:"amount"`
	AmountLabel  string                `json:"amount_label"`
	DueDate      time.Time             `json:"due_date"`
	Status       domain.InvoiceStatus  `json:"status"`
	ExpiresAt    time.Time             `json:"expires_at"`
	Methods      []string              `json:"methods"`
	Company      *domain.CompanyConfig `json:"company"`
}

// CheckoutReceipt is returned after the simulated gateway settles a payment
type CheckoutReceipt struct {
	SessionID   string          `json:"session_id"`
	Method      string          `json:"method"`
	VANumber    string          `json:"va_number"`
	PaidAt      time.Time       `json:"paid_at"`
	AlreadyPaid bool            `json:"already_paid"`
	Invoice     *domain.Invoice `json:"invoice"`
}

// WebhookPayload is the gateway callback body
type WebhookPayload struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// CheckoutService simulates the hosted payment page: a fixed processing delay,
// a mock virtual account number, then payment confirmation.
type CheckoutService struct {
	payments *PaymentService
	queries  *InvoiceQueries
	company  domain.CompanyRepository
	clock    clock.Clock
	delay    time.Duration
	secret   []byte
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	payments *PaymentService,
	queries *InvoiceQueries,
	company domain.CompanyRepository,
	clk clock.Clock,
	delay time.Duration,
	webhookSecret string,
) *CheckoutService {
	return &CheckoutService{
		payments: payments,
		queries:  queries,
		company:  company,
		clock:    clk,
		delay:    delay,
		secret:   []byte(webhookSecret),
	}
}

// Page returns the checkout view for an invoice
func (s *CheckoutService) Page(ctx context.Context, invoiceID string) (*CheckoutPage, error) {
	v, err := s.queries.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	company, err := s.company.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load company profile")
	}

	return &CheckoutPage{
		InvoiceID:    v.ID,
		CustomerName: v.CustomerName,
		Period:       v.Period,
		Amount:       v.Amount,
		AmountLabel:  "Rp " + domain.FormatRupiah(v.Amount),
		DueDate:      v.DueDate,
		Status:       v.EffectiveStatus,
		ExpiresAt:    s.clock.Now().Add(checkoutWindow),
		Methods:      []string{MethodQRIS, MethodGoPay, MethodBCAVA, MethodMandiriVA, MethodBNIVA},
		Company:      company,
	}, nil
}

// Pay waits out the simulated gateway delay and confirms the payment
func (s *CheckoutService) Pay(ctx context.Context, invoiceID, method string) (*CheckoutReceipt, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	code, ok := checkoutMethods[method]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMethod, "%q", method)
	}

	sessionID := ulid.Make().String()
	log := logger.FromContext(ctx).With(
		zap.String("invoice_id", invoiceID),
		zap.String("session_id", sessionID),
		zap.String("method", method),
	)
	log.Info("checkout payment started")

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	res, err := s.payments.ConfirmPaymentFrom(ctx, invoiceID, PaymentSourceCheckout)
	if err != nil {
		return nil, err
	}
	log.Info("checkout payment settled", zap.Bool("already_paid", !res.Changed))

	paidAt := s.clock.Now()
	if res.Invoice.PaidAt != nil {
		paidAt = *res.Invoice.PaidAt
	}
	return &CheckoutReceipt{
		SessionID:   sessionID,
		Method:      method,
		VANumber:    fmt.Sprintf("8888-MOCK-%s-%s", code, sessionID[len(sessionID)-8:]),
		PaidAt:      paidAt,
		AlreadyPaid: !res.Changed,
		Invoice:     res.Invoice,
	}, nil
}

// Sign computes the webhook signature: hex(HMAC-SHA256(secret, invoice_id + "." + status))
func (s *CheckoutService) Sign(invoiceID, status string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(invoiceID + "." + status))
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook verifies a gateway callback and confirms PAID notifications.
// Other statuses are acknowledged without touching the invoice.
func (s *CheckoutService) HandleWebhook(ctx context.Context, p WebhookPayload) (*PaymentResult, error) {
	log := logger.FromContext(ctx).With(zap.String("invoice_id", p.InvoiceID), zap.String("status", p.Status))

	if len(s.secret) == 0 {
		return nil, errors.Wrap(ErrBadSignature, "webhook secret not configured")
	}
	expected := s.Sign(p.InvoiceID, p.Status)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(p.Signature))) {
		log.Warn("webhook signature mismatch")
		return nil, ErrBadSignature
	}

	if !strings.EqualFold(p.Status, WebhookStatusPaid) {
		log.Info("webhook acknowledged without state change")
		return nil, nil
	}
	return s.payments.ConfirmPaymentFrom(ctx, p.InvoiceID, PaymentSourceWebhook)
}
