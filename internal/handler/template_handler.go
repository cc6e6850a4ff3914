package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/service"
)

// TemplateHandler handles WhatsApp message templates
type TemplateHandler struct {
	templates *service.TemplateService
	queries   *service.InvoiceQueries
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templates *service.TemplateService, queries *service.InvoiceQueries) *TemplateHandler {
	return &TemplateHandler{templates: templates, queries: queries}
}

func templateType(c *fiber.Ctx) domain.TemplateType {
	return domain.TemplateType(strings.ToLower(c.Params("type")))
}

// ListTemplates handles GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	list, err := h.templates.List(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// GetTemplate handles GET /v1/templates/:type
func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	tpl, err := h.templates.Get(c.UserContext(), templateType(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(tpl)
}

type saveTemplateRequest struct {
	Content string `json:"content"`
}

// SaveTemplate handles PUT /v1/templates/:type
func (h *TemplateHandler) SaveTemplate(c *fiber.Ctx) error {
	var req saveTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	tpl, err := h.templates.Save(c.UserContext(), templateType(c), req.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(tpl)
}

type draftRequest struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// DraftTemplate handles POST /v1/templates/:type/draft
func (h *TemplateHandler) DraftTemplate(c *fiber.Ctx) error {
	var req draftRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	if req.Name == "" {
		req.Name = "Pelanggan"
	}
	draft, err := h.templates.Draft(c.UserContext(), templateType(c), service.TemplateData{
		Name:   req.Name,
		Amount: req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(draft)
}

// PreviewTemplate handles GET /v1/templates/:type/preview?invoice_id=
func (h *TemplateHandler) PreviewTemplate(c *fiber.Ctx) error {
	invoiceID := c.Query("invoice_id")
	if invoiceID == "" {
		return badRequest(c, "invoice_id is required")
	}
	ctx := c.UserContext()
	view, err := h.queries.GetInvoice(ctx, invoiceID)
	if err != nil {
		return writeError(c, err)
	}
	text, err := h.templates.Render(ctx, templateType(c), view.Invoice)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"type": templateType(c), "invoice_id": invoiceID, "text": text})
}
