package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/meinhoongagan/telehealth-scheduler/controllers"
	"github.com/meinhoongagan/telehealth-scheduler/middleware"
	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// SetupAvailabilityRoutes configures doctor availability routes
func SetupAvailabilityRoutes(app *fiber.App, h *controllers.Controller, auth fiber.Handler) {
	doctors := app.Group("/doctors", auth)
	doctors.Put("/availability", middleware.RequireRole(models.RoleDoctor), h.SetAvailability)
	doctors.Get("/:id/available-slots", h.GetAvailableSlots)
}

// SetupConsultationRoutes configures the health worker consultation route
func SetupConsultationRoutes(app *fiber.App, h *controllers.Controller, auth fiber.Handler) {
	lhw := app.Group("/lhw", auth, middleware.RequireRole(models.RoleLHW, models.RoleAdmin))
	lhw.Post("/consultations", h.StartConsultation)
}
