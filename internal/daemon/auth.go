package daemon

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"certissuer/internal/api"
)

// authMiddleware validates bearer tokens. If token is empty, no authentication
// is required and all requests pass through. Otherwise, requests must include
// "Authorization: Bearer <token>".
func authMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		auth := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(api.ErrorResponse{Error: "unauthorized"})
		}
		presented := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(api.ErrorResponse{Error: "unauthorized"})
		}
		return c.Next()
	}
}
