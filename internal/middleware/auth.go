package middleware

import (
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"
const userIDHeader = "X-User-Id"

// Identity resolves the caller from the gateway-injected user header and
// stores it in Locals. Authentication itself happens upstream; the engine
// only needs a trustworthy user id.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(userIDHeader)
		if raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				c.Locals(userLocal, map[string]interface{}{"user_id": id.String()})
			}
		}
		return c.Next()
	}
}

// RequireAuth ensures a user identity is present. Returns 401 with the
// standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(userLocal) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// UserID extracts the authenticated user's id from Locals.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	u, ok := c.Locals(userLocal).(map[string]interface{})
	if !ok {
		return uuid.Nil, false
	}
	raw, _ := u["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
