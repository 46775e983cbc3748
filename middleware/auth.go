package middleware

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

const actorKey = "actor"

// Protected validates the bearer token and stores the caller as a
// models.Actor in c.Locals. An empty secret rejects every request.
func Protected(secret string, log zerolog.Logger) fiber.Handler {
	if secret == "" {
		log.Error().Msg("jwt secret is empty, all requests will be rejected")
		return func(c *fiber.Ctx) error {
			return unauthorized(c, "Authentication is not configured")
		}
	}
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError(log),
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return unauthorized(c, "Invalid token")
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "Invalid token claims")
			}

			actor, err := ActorFromClaims(claims)
			if err != nil {
				log.Debug().Err(err).Msg("rejecting token claims")
				return unauthorized(c, err.Error())
			}

			c.Locals(actorKey, actor)
			return c.Next()
		},
	})
}

// WithActor is used where identity is established elsewhere, such as tests
// or an upstream gateway.
func WithActor(actor models.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// ActorFrom returns the caller stored by Protected.
func ActorFrom(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorKey).(models.Actor)
	return actor, ok
}

// ActorFromClaims reads the "id" and "role" claims.
func ActorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	id, err := extractUserID(claims)
	if err != nil {
		return models.Actor{}, err
	}
	role, err := extractRole(claims)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{UserID: id, Role: role}, nil
}

// extractUserID handles multiple potential formats of user ID in token
func extractUserID(claims jwt.MapClaims) (string, error) {
	switch v := claims["id"].(type) {
	case nil:
		return "", fmt.Errorf("no ID found in claims")
	case string:
		if v == "" {
			return "", fmt.Errorf("empty ID in claims")
		}
		return v, nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", fmt.Errorf("unsupported ID type: %T", v)
	}
}

// extractRole handles multiple potential formats of role in token
func extractRole(claims jwt.MapClaims) (models.Role, error) {
	var name string
	switch v := claims["role"].(type) {
	case nil:
		return "", fmt.Errorf("no role found in claims")
	case string:
		name = v
	case map[string]interface{}:
		roleName, ok := v["name"].(string)
		if !ok {
			return "", fmt.Errorf("could not extract role name")
		}
		name = roleName
	default:
		return "", fmt.Errorf("unsupported role type: %T", v)
	}
	return models.ParseRole(name)
}

func jwtError(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		log.Debug().Err(err).Str("path", c.Path()).Msg("jwt rejected")
		return unauthorized(c, "Invalid or expired token")
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
		Message: "Unauthorized",
		Error:   msg,
	})
}
