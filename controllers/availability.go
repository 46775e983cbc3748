package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/telehealth-scheduler/middleware"
	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

// setAvailabilityRequest without a date replaces the default schedule.
type setAvailabilityRequest struct {
	Date  string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Slots []models.TimeSlot `json:"slots" validate:"dive"`
}

// SetAvailability lets a doctor publish default or per-date windows.
func (h *Controller) SetAvailability(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req setAvailabilityRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	var date *time.Time
	if req.Date != "" {
		d, err := utils.ParseDate(req.Date, h.loc)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
				Message: "Invalid date",
				Kind:    "validation",
				Error:   err.Error(),
			})
		}
		date = &d
	}

	doctor, err := h.manager.SetAvailability(c.UserContext(), a, date, req.Slots)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Availability updated",
		"doctorId": doctor.ID,
		"date":     req.Date,
		"slots":    req.Slots,
	})
}

// GetAvailableSlots returns the doctor's free windows for ?date=YYYY-MM-DD.
func (h *Controller) GetAvailableSlots(c *fiber.Ctx) error {
	raw := c.Query("date")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "date query parameter is required",
			Kind:    "validation",
		})
	}
	date, err := utils.ParseDate(raw, h.loc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Message: "Invalid date",
			Kind:    "validation",
			Error:   err.Error(),
		})
	}

	slots, err := h.manager.AvailableSlots(c.UserContext(), c.Params("id"), date)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"doctorId":       c.Params("id"),
		"date":           raw,
		"availableSlots": slots,
	})
}
