// handlers/region_routes.go
package handlers

import (
	"context"

	"wildlife-challenge-service/models"
	"wildlife-challenge-service/services"

	"github.com/gofiber/fiber/v2"
)

func regionResponse(region *models.Region, preview services.RegionPreview) fiber.Map {
	return fiber.Map{
		"id":            region.ID,
		"region_key":    region.RegionKey,
		"location":      region.Location,
		"center_lat":    region.CenterLat,
		"center_lng":    region.CenterLng,
		"manifest_size": preview.ManifestSize,
		"preview":       preview,
	}
}

func SetupRegionRoutes(app *fiber.App, resolver *services.RegionResolver, challenges *services.ChallengeService) {
	regions := app.Group("/regions")

	resolveWith := func(fn func(ctx context.Context, lat, lng float64) (*models.Region, error), failure string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			lat, lng, err := parseCoordinates(c)
			if err != nil {
				return badRequest(c, "invalid coordinates", err)
			}
			region, err := fn(c.UserContext(), lat, lng)
			if err != nil {
				return serviceError(c, failure, err)
			}
			return c.JSON(regionResponse(region, challenges.Preview(region)))
		}
	}

	regions.Post("/resolve", resolveWith(resolver.Resolve, "failed to resolve region"))
	regions.Post("/regenerate", resolveWith(resolver.Regenerate, "failed to regenerate region"))

	regions.Get("/:key", func(c *fiber.Ctx) error {
		region, err := resolver.Store.FindByKey(c.UserContext(), c.Params("key"))
		if err != nil {
			return serviceError(c, "failed to load region", err)
		}
		return c.JSON(region)
	})
}
