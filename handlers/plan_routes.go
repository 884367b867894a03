package handlers

import (
	"lifequest-engine/middleware"
	"lifequest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPlanRoutes(app *fiber.App, planner *services.PlannerService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/plan/generate", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			Force bool `json:"force"`
		}
		var req Req
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON",
					"kind":  services.KindValidation,
				})
			}
		}

		result, err := planner.GeneratePlan(userID, req.Force)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":               true,
			"count":                 result.AssignedCount,
			"no_missions_available": result.NoCandidates,
		})
	})

	secured.Get("/plan/today", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		assignments, err := planner.TodayPlan(userID)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"assignments": assignments,
			"count":       len(assignments),
		})
	})
}
