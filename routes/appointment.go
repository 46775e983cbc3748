package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/telehealth-scheduler/controllers"
	"github.com/meinhoongagan/telehealth-scheduler/middleware"
	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// SetupAppointmentRoutes configures all appointment related routes
func SetupAppointmentRoutes(app *fiber.App, h *controllers.Controller, auth fiber.Handler) {
	appointment := app.Group("/appointments", auth)
	appointment.Post("/", middleware.RequireRole(models.RolePatient), h.CreateAppointment)
	appointment.Get("/", h.GetAppointments)
	appointment.Get("/:id", h.GetAppointment)
	appointment.Put("/:id/accept", middleware.RequireRole(models.RoleDoctor, models.RoleAdmin), h.AcceptAppointment)
	appointment.Put("/:id/reject", middleware.RequireRole(models.RoleDoctor, models.RoleAdmin), h.RejectAppointment)
	appointment.Put("/:id/complete", middleware.RequireRole(models.RoleDoctor), h.CompleteAppointment)
	appointment.Put("/:id/reschedule", h.RescheduleAppointment)
	appointment.Put("/:id", h.UpdateAppointmentStatus)
	appointment.Delete("/:id", h.CancelAppointment)
}
