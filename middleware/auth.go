package middleware

import (
	"testhub/config"
	"testhub/utils"

	"github.com/gofiber/fiber/v2"
)

func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, err := utils.ExtractUserIDFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// RequireRole gates a route group on the role claim in the token. Roles are
// fixed at registration, so no per-request user lookup is needed.
func RequireRole(cfg *config.Config, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got, err := utils.ExtractRoleFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}
		if got != role {
			return utils.Forbidden(c, "Forbidden - "+role+" access required")
		}

		return c.Next()
	}
}
