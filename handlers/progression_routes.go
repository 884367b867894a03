package handlers

import (
	"lifequest-engine/middleware"
	"lifequest-engine/models"
	"lifequest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, progression *services.ProgressionService, dex *services.DexService, scorer *services.ScorerService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/user/stats", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		stats, err := progression.EnsureStatsRecord(progression.DB, userID)
		if err != nil {
			return respondError(c, err)
		}

		skillTotals, err := progression.SkillXPTotals(userID)
		if err != nil {
			return respondError(c, err)
		}

		var unlockCount int64
		if err := progression.DB.Model(&models.UserDexUnlock{}).
			Where("user_id = ?", userID).
			Count(&unlockCount).Error; err != nil {
			return respondError(c, services.StoreError("failed to count unlocks", err))
		}

		return c.JSON(fiber.Map{
			"xp_total":                stats.XPTotal,
			"level":                   stats.Level,
			"streak_current":          stats.StreakCurrent,
			"streak_best":             stats.StreakBest,
			"last_daily_completed_at": stats.LastDailyCompletedAt,
			"last_active_at":          stats.LastActiveAt,
			"last_level_up_at":        stats.LastLevelUpAt,
			"skill_xp":                skillTotals,
			"dex_unlocked":            unlockCount,
		})
	})

	secured.Get("/user/dex", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		cards, err := dex.ListForUser(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"cards": cards,
			"count": len(cards),
		})
	})

	// Admin endpoints
	admin := app.Group("/s/admin", middleware.UserContextMiddleware())

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		if !middleware.HasRole(c, "admin") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
				"kind":  services.KindForbidden,
			})
		}

		type Req struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"kind":  services.KindValidation,
			})
		}
		if req.UserID == "" {
			return respondError(c, services.ValidationError("user_id is required"))
		}

		result, err := scorer.GrantXP(req.UserID, req.XP, req.Reason)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":     true,
			"user_id":     req.UserID,
			"xp_gained":   result.XPGained,
			"new_level":   result.NewLevel,
			"level_up":    result.LevelUp,
			"new_unlocks": result.NewUnlocks,
		})
	})
}
