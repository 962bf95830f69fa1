// handlers/respond.go
package handlers

import (
	"errors"
	"fmt"

	"wildlife-challenge-service/services"
	"wildlife-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type coordinatesRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// parseCoordinates reads {lat,lng} from the body and range-checks them.
func parseCoordinates(c *fiber.Ctx) (float64, float64, error) {
	var req coordinatesRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, 0, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.Lat == nil || req.Lng == nil {
		return 0, 0, errors.New("lat and lng are required")
	}
	if *req.Lat < -90 || *req.Lat > 90 {
		return 0, 0, fmt.Errorf("lat %v out of range [-90, 90]", *req.Lat)
	}
	if *req.Lng < -180 || *req.Lng > 180 {
		return 0, 0, fmt.Errorf("lng %v out of range [-180, 180]", *req.Lng)
	}
	return *req.Lat, *req.Lng, nil
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}

// serviceError maps service failures onto HTTP statuses.
func serviceError(c *fiber.Ctx, msg string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrGeocode), errors.Is(err, services.ErrManifestParse):
		status = fiber.StatusBadGateway
	case errors.Is(err, services.ErrEmptyCatalog):
		status = fiber.StatusServiceUnavailable
	}
	if status >= fiber.StatusInternalServerError {
		utils.Logger.Error(msg, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
