package middleware

import (
	"log"
	"strings"

	"game-match-system/services"

	"github.com/gofiber/fiber/v2"
)

// WSAuthMiddleware authenticates direct websocket upgrades that do not come
// through the Gateway. Browsers cannot set headers on a websocket handshake,
// so the access token travels as a query param and is validated against the
// auth service before the upgrade. Requests that already carry a verified
// X-User-ID pass through untouched.
//
// Usage:
//
//	app.Use("/socket/game", middleware.WSAuthMiddleware(authClient))
func WSAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-User-ID") != "" {
			return c.Next()
		}

		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken)
		if err != nil {
			log.Printf("[WSAuth] ❌ Token validation failed for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		return c.Next()
	}
}
