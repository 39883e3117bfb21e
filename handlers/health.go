package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/placementpulse/api/database"
)

// HandlePing reports that the process is up
func HandlePing(c *fiber.Ctx, store database.Storage) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleCheckHealth reports whether the database answers
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	if err := store.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unavailable",
			"database": "down",
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "database": "up"})
}
