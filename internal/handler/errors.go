package handler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/logger"
	"github.com/phbiling/isp-billing/internal/telemetry"
	"go.uber.org/zap"
)

// errorClasses maps domain errors to HTTP status codes and the class tagged
// on the request span. First match wins.
var errorClasses = []struct {
	target error
	status int
	class  string
}{
	{domain.ErrValidation, fiber.StatusBadRequest, "validation"},
	{domain.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{domain.ErrDuplicateInvoiceID, fiber.StatusConflict, "duplicate_invoice"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, fiber.StatusForbidden, "forbidden"},
}

func classify(err error) (int, string) {
	for _, ec := range errorClasses {
		if errors.Is(err, ec.target) {
			return ec.status, ec.class
		}
	}
	return fiber.StatusInternalServerError, "internal"
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	status, _ := classify(err)
	return status
}

// writeError renders err as {"error": "..."}. Internal errors are logged and
// their detail is not sent to the client.
func writeError(c *fiber.Ctx, err error) error {
	status, class := classify(err)
	telemetry.RecordRequestError(c, class, status, err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		logger.FromContext(c.UserContext()).Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
