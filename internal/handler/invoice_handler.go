package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/service"
)

// InvoiceHandler handles invoice generation, listing and manual payment
type InvoiceHandler struct {
	generator *service.InvoiceGenerator
	queries   *service.InvoiceQueries
	payments  *service.PaymentService
	documents *service.DocumentService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(
	generator *service.InvoiceGenerator,
	queries *service.InvoiceQueries,
	payments *service.PaymentService,
	documents *service.DocumentService,
) *InvoiceHandler {
	return &InvoiceHandler{
		generator: generator,
		queries:   queries,
		payments:  payments,
		documents: documents,
	}
}

// ListInvoices handles GET /v1/invoices
// Query params: status (PAID, UNPAID, OVERDUE), customer_id, period (YYYY-MM), search
func (h *InvoiceHandler) ListInvoices(c *fiber.Ctx) error {
	filter := service.InvoiceFilter{
		Status:     domain.InvoiceStatus(strings.ToUpper(c.Query("status"))),
		CustomerID: c.Query("customer_id"),
		PeriodKey:  c.Query("period"),
		Search:     c.Query("search"),
	}
	switch filter.Status {
	case "", domain.InvoiceStatusPaid, domain.InvoiceStatusUnpaid, domain.InvoiceStatusOverdue:
	default:
		return badRequest(c, "status must be PAID, UNPAID or OVERDUE")
	}

	list, err := h.queries.ListInvoices(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// GetInvoice handles GET /v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	view, err := h.queries.GetInvoice(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

// GenerateInvoices handles POST /v1/invoices/generate
func (h *InvoiceHandler) GenerateInvoices(c *fiber.Ctx) error {
	result, err := h.generator.Generate(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"period":   result.Period,
		"count":    result.Count,
		"created":  result.Created,
		"skipped":  result.Skipped,
		"total":    len(result.Invoices),
	})
}

// ConfirmPayment handles POST /v1/invoices/:id/pay (cash or transfer recorded by an admin)
func (h *InvoiceHandler) ConfirmPayment(c *fiber.Ctx) error {
	result, err := h.payments.ConfirmPayment(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// GetDocument handles GET /v1/invoices/:id/document
func (h *InvoiceHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.documents.Render(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(doc)
}

// ArchiveDocument handles POST /v1/invoices/:id/archive
func (h *InvoiceHandler) ArchiveDocument(c *fiber.Ctx) error {
	url, err := h.documents.Archive(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"invoice_id": c.Params("id"), "url": url})
}
