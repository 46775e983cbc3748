package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

// Controller exposes the scheduling engine over HTTP.
type Controller struct {
	manager *scheduler.Manager
	loc     *time.Location
	log     zerolog.Logger
}

func New(manager *scheduler.Manager, loc *time.Location, log zerolog.Logger) *Controller {
	if loc == nil {
		loc = time.Local
	}
	return &Controller{manager: manager, loc: loc, log: log}
}

var statusByKind = map[scheduler.Kind]int{
	scheduler.KindValidation:   fiber.StatusBadRequest,
	scheduler.KindNotFound:     fiber.StatusNotFound,
	scheduler.KindAvailability: fiber.StatusBadRequest,
	scheduler.KindConflict:     fiber.StatusConflict,
	scheduler.KindState:        fiber.StatusConflict,
	scheduler.KindForbidden:    fiber.StatusForbidden,
}

// fail renders a scheduler rejection. Internal errors are logged and replaced
// by a generic message.
func (h *Controller) fail(c *fiber.Ctx, err error) error {
	var se *scheduler.Error
	if errors.As(err, &se) {
		if status, ok := statusByKind[se.Kind]; ok {
			return c.Status(status).JSON(utils.ErrorResponse{
				Message: se.Reason,
				Kind:    string(se.Kind),
				Party:   string(se.Party),
			})
		}
	}

	h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
		Message: "Internal server error",
		Kind:    string(scheduler.KindInternal),
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(utils.ErrorResponse{
		Message: "Unauthorized",
		Error:   "No authentication token",
	})
}
