package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/notify"
)

type ConsultationRequest struct {
	PatientID string   `json:"patientId"`
	DoctorID  string   `json:"doctorId"`
	Symptoms  []string `json:"symptoms"`
}

// StartConsultation books an immediate, already confirmed appointment on
// behalf of a patient and opens its consultation record. The appointment is
// frozen against reschedule from the moment it exists.
func (m *Manager) StartConsultation(ctx context.Context, actor models.Actor, req ConsultationRequest) (appt *models.Appointment, consult *models.Consultation, err error) {
	defer func() { m.finish("start_consultation", appt, err) }()

	if !actor.Is(models.RoleLHW, models.RoleAdmin) {
		return nil, nil, forbidden("Only health workers can start consultations")
	}
	if strings.TrimSpace(req.PatientID) == "" || strings.TrimSpace(req.DoctorID) == "" {
		return nil, nil, invalid("patientId and doctorId are required")
	}

	patient, err := m.store.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, nil, lookup(err, "Patient not found")
	}
	doctor, err := m.store.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, nil, lookup(err, "Doctor not found")
	}

	start := m.now().In(m.loc)
	end := start.Add(m.lhwLength)
	approved := start

	appt = &models.Appointment{
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
		ReasonForVisit: fmt.Sprintf("LHW-initiated consultation for %s", patient.Name),
		Status:         models.StatusConfirmed,
		Origin:         models.OriginLHW,
		ApprovedAt:     &approved,
	}
	appt.SetWindow(start, end)

	err = m.store.WithinTx(ctx, doctor.ID, patient.ID, func(tx Store) error {
		if err := m.ensureFree(ctx, tx, PartyDoctor, doctor.ID, start, end, "", "Doctor is already booked for this time."); err != nil {
			return err
		}
		if err := m.ensureFree(ctx, tx, PartyPatient, patient.ID, start, end, "", "Patient already has an appointment at this time."); err != nil {
			return err
		}
		if err := tx.CreateAppointment(ctx, appt); err != nil {
			return err
		}
		consult = &models.Consultation{
			AppointmentID: appt.ID,
			PatientID:     patient.ID,
			DoctorID:      doctor.ID,
			Symptoms:      req.Symptoms,
			Diagnosis:     "Pending",
			Status:        models.ConsultationReady,
		}
		return tx.CreateConsultation(ctx, consult)
	})
	if err != nil {
		return nil, nil, m.txError(err, "Doctor is already booked for this time.")
	}
	appt.Doctor, appt.Patient = doctor, patient

	m.notify(ctx, notify.Message{
		Kind:            notify.KindBookingCreated,
		RecipientUserID: doctor.UserID,
		RecipientEmail:  doctor.Email,
		Subject:         "Consultation starting now",
		Text:            fmt.Sprintf("A health worker started a consultation for %s", patient.Name),
		AppointmentID:   appt.ID,
		Payload: map[string]any{
			"consultationId": consult.ID,
			"symptoms":       req.Symptoms,
		},
	})
	return appt, consult, nil
}
