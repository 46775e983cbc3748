package scheduler

import (
	"context"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// Get returns one appointment if the actor may see it.
func (m *Manager) Get(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	appt, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Is(models.RoleAdmin, models.RoleLHW) {
		return appt, nil
	}
	if _, _, err := m.authorizeParty(ctx, actor, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// ListForActor scopes the listing to the caller: patients see their own
// appointments, doctors the ones booked with them, admins and health workers
// everything. status is optional and accepts legacy labels.
func (m *Manager) ListForActor(ctx context.Context, actor models.Actor, status string) ([]models.Appointment, error) {
	var filter AppointmentFilter

	if status != "" {
		s, err := models.ParseStatus(status)
		if err != nil {
			return nil, invalid(err.Error())
		}
		filter.Statuses = []models.AppointmentStatus{s}
	}

	switch {
	case actor.Is(models.RoleAdmin, models.RoleLHW):
	case actor.Is(models.RolePatient):
		patient, err := m.store.GetPatientByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, lookup(err, "Patient profile not found")
		}
		filter.PatientID = patient.ID
	case actor.Is(models.RoleDoctor):
		doctor, err := m.store.GetDoctorByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, lookup(err, "Doctor profile not found")
		}
		filter.DoctorID = doctor.ID
	default:
		return nil, forbidden("Your role cannot list appointments")
	}

	list, err := m.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, internal("list appointments", err)
	}
	return list, nil
}
