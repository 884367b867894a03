package handlers

import (
	"errors"

	"lifequest-engine/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps an engine error to its HTTP status, keeping the stable
// kind alongside the human-readable message.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)

	status := fiber.StatusInternalServerError
	switch kind {
	case services.KindUnauthorized:
		status = fiber.StatusUnauthorized
	case services.KindForbidden:
		status = fiber.StatusForbidden
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindAlreadyCompleted:
		status = fiber.StatusConflict
	case services.KindValidation:
		status = fiber.StatusBadRequest
	}

	msg := err.Error()
	var ee *services.EngineError
	if errors.As(err, &ee) {
		msg = ee.Message
	}

	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"kind":  kind,
	})
}
