package handlers

import (
	"lifequest-engine/middleware"
	"lifequest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMissionRoutes(app *fiber.App, planner *services.PlannerService, scorer *services.ScorerService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/missions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		missions, err := planner.CatalogForUser(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"missions": missions,
			"count":    len(missions),
		})
	})

	secured.Post("/missions/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			AssignmentID string  `json:"assignment_id"`
			EvidenceURL  *string `json:"evidence_url"`
			Reflection   *string `json:"reflection"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"kind":  services.KindValidation,
			})
		}

		result, err := scorer.CompleteMission(userID, req.AssignmentID, req.EvidenceURL, req.Reflection)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":     true,
			"xp_gained":   result.XPGained,
			"new_level":   result.NewLevel,
			"level_up":    result.LevelUp,
			"new_streak":  result.NewStreak,
			"new_unlocks": result.NewUnlocks,
		})
	})
}
