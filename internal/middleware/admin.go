package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// AdminMiddleware checks if the authenticated user carries the admin role.
// The admin surface (reload, remote open, permission grants) sits behind it.
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(string)
		if !ok || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if role, ok := c.Locals("user_role").(string); !ok || role != "admin" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
			})
		}

		c.Locals("is_admin", true)
		return c.Next()
	}
}

// IsElevated reports whether the request's auth claims carry the admin role.
func IsElevated(c *fiber.Ctx) bool {
	role, ok := c.Locals("user_role").(string)
	return ok && role == "admin"
}
