package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/service"
)

// SweepSchedule reports when the isolation sweep runs next
type SweepSchedule interface {
	NextSweep() time.Time
}

// IsolationHandler handles isolation candidates and auto-isolation settings
type IsolationHandler struct {
	isolation *service.IsolationService
	queries   *service.InvoiceQueries
	schedule  SweepSchedule
}

// NewIsolationHandler creates a new IsolationHandler. schedule may be nil.
func NewIsolationHandler(isolation *service.IsolationService, queries *service.InvoiceQueries, schedule SweepSchedule) *IsolationHandler {
	return &IsolationHandler{isolation: isolation, queries: queries, schedule: schedule}
}

// ListCandidates handles GET /v1/isolation/candidates.
// due_today lists customers whose due day is today; targets applies the grace period.
func (h *IsolationHandler) ListCandidates(c *fiber.Ctx) error {
	ctx := c.UserContext()
	dueToday, err := h.queries.IsolationCandidates(ctx)
	if err != nil {
		return writeError(c, err)
	}
	targets, err := h.isolation.Targets(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"date":      h.queries.Today().Format("2006-01-02"),
		"due_today": dueToday,
		"targets":   targets,
	})
}

// Apply handles POST /v1/isolation/apply
func (h *IsolationHandler) Apply(c *fiber.Ctx) error {
	isolated, err := h.isolation.Apply(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"isolated": isolated, "count": len(isolated)})
}

// Sweep handles POST /v1/isolation/sweep, running the daily job immediately
func (h *IsolationHandler) Sweep(c *fiber.Ctx) error {
	result, err := h.isolation.Sweep(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// GetSettings handles GET /v1/isolation/settings
func (h *IsolationHandler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(h.settingsResponse(h.isolation.Settings()))
}

// UpdateSettings handles PUT /v1/isolation/settings
func (h *IsolationHandler) UpdateSettings(c *fiber.Ctx) error {
	var req service.IsolationSettings
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	settings, err := h.isolation.UpdateSettings(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.settingsResponse(settings))
}

func (h *IsolationHandler) settingsResponse(s service.IsolationSettings) fiber.Map {
	resp := fiber.Map{"settings": s}
	if h.schedule != nil {
		if next := h.schedule.NextSweep(); !next.IsZero() {
			resp["next_run"] = next
		}
	}
	return resp
}
