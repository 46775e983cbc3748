package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/telehealth-scheduler/middleware"
	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateAppointment books a pending appointment for the calling patient.
func (h *Controller) CreateAppointment(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req scheduler.BookingRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	appt, err := h.manager.Create(c.UserContext(), a, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(appt)
}

// GetAppointments lists the caller's appointments, optionally by ?status=.
func (h *Controller) GetAppointments(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	list, err := h.manager.ListForActor(c.UserContext(), a, c.Query("status"))
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []models.Appointment{}
	}
	return c.JSON(list)
}

func (h *Controller) GetAppointment(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	appt, err := h.manager.Get(c.UserContext(), a, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appt)
}

func (h *Controller) AcceptAppointment(c *fiber.Ctx) error {
	return h.transition(c, h.manager.Accept)
}

func (h *Controller) RejectAppointment(c *fiber.Ctx) error {
	return h.transition(c, h.manager.Reject)
}

func (h *Controller) CompleteAppointment(c *fiber.Ctx) error {
	return h.transition(c, h.manager.Complete)
}

// CancelAppointment is a status change; appointments are never deleted.
func (h *Controller) CancelAppointment(c *fiber.Ctx) error {
	return h.transition(c, h.manager.Cancel)
}

// UpdateAppointmentStatus accepts {"status": "..."} including the legacy
// "approved" and "accepted" labels.
func (h *Controller) UpdateAppointmentStatus(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req updateStatusRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	appt, err := h.manager.UpdateStatus(c.UserContext(), a, c.Params("id"), req.Status)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appt)
}

func (h *Controller) RescheduleAppointment(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req scheduler.TimeRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	appt, err := h.manager.Reschedule(c.UserContext(), a, c.Params("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appt)
}

type transitionFunc func(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error)

func (h *Controller) transition(c *fiber.Ctx, fn transitionFunc) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	appt, err := fn(c.UserContext(), a, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(appt)
}
