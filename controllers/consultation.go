package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/telehealth-scheduler/middleware"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

type startConsultationRequest struct {
	PatientID string   `json:"patientId" validate:"required"`
	DoctorID  string   `json:"doctorId" validate:"required"`
	Symptoms  []string `json:"symptoms" validate:"dive,required"`
}

// StartConsultation is the health-worker path: an immediate, confirmed
// appointment with its consultation record.
func (h *Controller) StartConsultation(c *fiber.Ctx) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req startConsultationRequest
	if ok, err := utils.BindAndValidate(c, &req); !ok {
		return err
	}

	appt, consult, err := h.manager.StartConsultation(c.UserContext(), a, scheduler.ConsultationRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Symptoms:  req.Symptoms,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"appointment":  appt,
		"consultation": consult,
	})
}
