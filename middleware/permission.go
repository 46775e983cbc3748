package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

// RequireRole lets the request through only when the caller holds one of
// roles. It must run after Protected or WithActor.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return unauthorized(c, "No authentication token")
		}
		if !actor.Is(roles...) {
			return c.Status(fiber.StatusForbidden).JSON(utils.ErrorResponse{
				Message: "You don't have the required role to perform this action",
				Kind:    "forbidden",
			})
		}
		return c.Next()
	}
}
