// handlers/progression_routes.go
package handlers

import (
	"errors"

	"wildlife-challenge-service/middleware"
	"wildlife-challenge-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, progressionService *services.ProgressionService, badgeService *services.BadgeService, catalogService *services.CatalogService) {
	// The gateway forwards /api/v1/wildlife/s/user/progress -> /user/progress
	securedGroup := app.Group("/user/progress", middleware.UserContextMiddleware())

	securedGroup.Get("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prog, err := progressionService.GetProgress(c.UserContext(), userID)
		if err != nil {
			return serviceError(c, "failed to load progress", err)
		}

		return c.JSON(fiber.Map{
			"id":                prog.ID,
			"xp":                prog.TotalXP,
			"level":             prog.Level,
			"rank":              prog.Rank,
			"rank_name":         rankName(prog.Rank),
			"total_challenges":  prog.TotalChallenges,
			"daily_completed":   prog.DailyCompleted,
			"weekly_completed":  prog.WeeklyCompleted,
			"last_challenge_at": prog.LastChallengeAt,
			"last_level_up_at":  prog.LastLevelUpAt,
			"last_rank_up_at":   prog.LastRankUpAt,
		})
	})

	securedGroup.Get("/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		badges, err := badgeService.ListUserBadges(c.UserContext(), userID)
		if err != nil {
			return serviceError(c, "failed to get badges", err)
		}
		if badges == nil {
			badges = []services.UserBadgeView{}
		}
		return c.JSON(badges)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if req.UserID == "" || req.XP < 1 {
			return badRequest(c, "invalid grant", errors.New("user_id and a positive xp are required"))
		}
		if req.Reason == "" {
			req.Reason = "admin_grant"
		}

		prog, err := progressionService.AwardXP(c.UserContext(), req.UserID, req.XP, req.Reason)
		if err != nil {
			return serviceError(c, "XP award failed", err)
		}
		if err := badgeService.AutoAwardBadges(c.UserContext(), req.UserID); err != nil {
			return serviceError(c, "badge evaluation failed", err)
		}

		return c.JSON(fiber.Map{
			"message":  "XP granted successfully",
			"user_id":  req.UserID,
			"xp":       req.XP,
			"total_xp": prog.TotalXP,
			"level":    prog.Level,
		})
	})

	adminGroup.Post("/catalog/refresh", func(c *fiber.Ctx) error {
		if err := catalogService.Refresh(c.UserContext()); err != nil {
			return serviceError(c, "catalog refresh failed", err)
		}
		names, err := catalogService.ListCatalogNames(c.UserContext())
		if err != nil {
			return serviceError(c, "catalog refresh failed", err)
		}
		return c.JSON(fiber.Map{
			"message": "catalog refreshed",
			"animals": len(names),
		})
	})
}

func rankName(rank int) string {
	switch rank {
	case 1:
		return "Rookie"
	case 2:
		return "Tracker"
	case 3:
		return "Ranger"
	case 4:
		return "Warden"
	case 5:
		return "Naturalist"
	default:
		if rank > 5 {
			return "Naturalist"
		}
		return "Rookie"
	}
}
