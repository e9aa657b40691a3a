package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Healthz pings the database.
// GET /healthz
func Healthz(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "database": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}
