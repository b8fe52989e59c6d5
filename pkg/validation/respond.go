package validation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

// Respond writes a 400 response with per-field messages.
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ValidationErrorResponse{
		Error:  "Validation failed",
		Code:   "VALIDATION_FAILED",
		Errors: errs,
	})
}
