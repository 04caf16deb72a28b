// utils/http.go - response helpers shared by the fiber handlers
package utils

import (
	"github.com/gofiber/fiber/v2"
)

// JSONError sends {"success": false, "error": message}.
func JSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// JSONSuccess sends data merged under "success": true. Non-map payloads are
// nested under "data".
func JSONSuccess(c *fiber.Ctx, status int, data interface{}) error {
	response := fiber.Map{"success": true}

	switch v := data.(type) {
	case fiber.Map:
		for k, val := range v {
			response[k] = val
		}
	case nil:
	default:
		response["data"] = v
	}

	return c.Status(status).JSON(response)
}
