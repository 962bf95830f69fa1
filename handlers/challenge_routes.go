// handlers/challenge_routes.go
package handlers

import (
	"errors"
	"strings"

	"wildlife-challenge-service/middleware"
	"wildlife-challenge-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challenges *services.ChallengeService, tracker *services.ProgressTracker) {
	securedGroup := app.Group("/user/challenges", middleware.UserContextMiddleware())

	securedGroup.Post("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		lat, lng, err := parseCoordinates(c)
		if err != nil {
			return badRequest(c, "invalid coordinates", err)
		}
		uc, err := challenges.GetOrCreate(c.UserContext(), userID, lat, lng)
		if err != nil {
			return serviceError(c, "failed to load challenges", err)
		}
		return c.JSON(uc)
	})

	securedGroup.Get("/active", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		uc, err := challenges.GetActive(c.UserContext(), userID)
		if err != nil {
			return serviceError(c, "failed to load active challenge", err)
		}
		if uc == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no active challenge",
			})
		}
		return c.JSON(uc)
	})

	adminGroup := app.Group("/s/admin/challenges", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/progress", func(c *fiber.Ctx) error {
		type Req struct {
			UserID     string `json:"user_id"`
			AnimalName string `json:"animal_name"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.AnimalName) == "" {
			return badRequest(c, "invalid sighting", errors.New("user_id and animal_name are required"))
		}

		result, err := tracker.RecordSighting(c.UserContext(), req.UserID, req.AnimalName)
		if err != nil {
			return serviceError(c, "failed to record sighting", err)
		}
		return c.JSON(result)
	})
}
