package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/service"
)

// SettingsHandler handles the company profile and the network views
type SettingsHandler struct {
	company *service.CompanyService
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(company *service.CompanyService) *SettingsHandler {
	return &SettingsHandler{company: company}
}

// GetCompany handles GET /v1/settings/company
func (h *SettingsHandler) GetCompany(c *fiber.Ctx) error {
	cfg, err := h.company.Get(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cfg)
}

// UpdateCompany handles PUT /v1/settings/company
func (h *SettingsHandler) UpdateCompany(c *fiber.Ctx) error {
	var req domain.CompanyConfig
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cfg, err := h.company.Update(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cfg)
}

// UploadLogo handles POST /v1/settings/company/logo (multipart field "logo")
func (h *SettingsHandler) UploadLogo(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("logo")
	if err != nil {
		return badRequest(c, "logo file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return writeError(c, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return writeError(c, err)
	}

	cfg, err := h.company.UploadLogo(c.UserContext(), data, fileHeader.Filename, fileHeader.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cfg)
}

// ListRouters handles GET /v1/routers
func (h *SettingsHandler) ListRouters(c *fiber.Ctx) error {
	routers, err := h.company.Routers(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(routers)
}

// ListLogs handles GET /v1/logs?limit=
func (h *SettingsHandler) ListLogs(c *fiber.Ctx) error {
	logs, err := h.company.Logs(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(logs)
}
