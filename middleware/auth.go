package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity the Gateway verified and
// attaches it to the request context. Secured paths — the REST surface under
// /s/ and the game socket — require it; every game event depends on
// c.Locals("user_id") being set before dispatch.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/s/") || strings.HasPrefix(path, "/socket/")
		if isSecured && userID == "" && c.Locals("user_id") == nil {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}
