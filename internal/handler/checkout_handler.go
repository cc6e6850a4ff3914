package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/service"
	"go.uber.org/zap"
)

// CheckoutHandler serves the public payment link and the gateway callback.
// Neither route requires a staff session.
type CheckoutHandler struct {
	checkout *service.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkout *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// GetCheckout handles GET /v1/checkout/:id
func (h *CheckoutHandler) GetCheckout(c *fiber.Ctx) error {
	page, err := h.checkout.Page(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(page)
}

type payRequest struct {
	Method string `json:"method"`
}

// Pay handles POST /v1/checkout/:id/pay
func (h *CheckoutHandler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Method == "" {
		return badRequest(c, "method is required")
	}

	receipt, err := h.checkout.Pay(c.UserContext(), c.Params("id"), req.Method)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(receipt)
}

// HandleWebhook handles POST /v1/payments/webhook
func (h *CheckoutHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload service.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		logger.FromContext(c.UserContext()).Warn("failed to parse payment webhook", zap.Error(err))
		return badRequest(c, "invalid webhook payload")
	}
	if payload.InvoiceID == "" || payload.Status == "" || payload.Signature == "" {
		return badRequest(c, "invoice_id, status and signature are required")
	}

	result, err := h.checkout.HandleWebhook(c.UserContext(), payload)
	if err != nil {
		return writeError(c, err)
	}
	if result == nil {
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"changed": result.Changed,
		"invoice": result.Invoice,
	})
}
