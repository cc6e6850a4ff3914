package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/service"
)

// DashboardHandler handles the operator dashboard
type DashboardHandler struct {
	dashboard *service.DashboardService
	insight   *service.InsightService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboard *service.DashboardService, insight *service.InsightService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, insight: insight}
}

// GetSummary handles GET /v1/dashboard
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.dashboard.Summary(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(summary)
}

// GetHealthReport handles GET /v1/dashboard/health-report
func (h *DashboardHandler) GetHealthReport(c *fiber.Ctx) error {
	report, err := h.insight.HealthReport(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}
