package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meinhoongagan/telehealth-scheduler/metrics"
	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/notify"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

// TimeRequest carries a requested slot either as explicit timestamps or as a
// legacy date plus time of day, which implies the default duration.
type TimeRequest struct {
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
}

type BookingRequest struct {
	TimeRequest
	DoctorID       string `json:"doctorId"`
	ReasonForVisit string `json:"reason_for_visit"`
}

type Options struct {
	// Location is the single zone availability windows are read in.
	Location        *time.Location
	DefaultDuration time.Duration
	LHWDuration     time.Duration
	Now             func() time.Time
	Logger          zerolog.Logger
	Metrics         *metrics.SchedulingMetrics
}

// Manager owns every status and time change of an appointment.
type Manager struct {
	store     Store
	notifier  notify.Notifier
	resolver  *AvailabilityResolver
	conflicts ConflictDetector
	loc       *time.Location
	duration  time.Duration
	lhwLength time.Duration
	now       func() time.Time
	log       zerolog.Logger
	metrics   *metrics.SchedulingMetrics
}

func NewManager(store Store, notifier notify.Notifier, opts Options) *Manager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = time.Hour
	}
	if opts.LHWDuration <= 0 {
		opts.LHWDuration = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:     store,
		notifier:  notifier,
		resolver:  NewAvailabilityResolver(store, store, opts.Location),
		conflicts: NewConflictDetector(),
		loc:       opts.Location,
		duration:  opts.DefaultDuration,
		lhwLength: opts.LHWDuration,
		now:       opts.Now,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

func (m *Manager) Resolver() *AvailabilityResolver { return m.resolver }

// Create books a pending appointment for the calling patient.
func (m *Manager) Create(ctx context.Context, actor models.Actor, req BookingRequest) (appt *models.Appointment, err error) {
	defer func() { m.finish("create", appt, err) }()

	if !actor.Is(models.RolePatient) {
		return nil, forbidden("Only patients can book appointments")
	}
	if strings.TrimSpace(req.DoctorID) == "" || strings.TrimSpace(req.ReasonForVisit) == "" {
		return nil, invalid("doctorId and reason_for_visit are required")
	}

	patient, err := m.store.GetPatientByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookup(err, "Patient profile not found")
	}

	start, end, err := m.window(req.TimeRequest)
	if err != nil {
		return nil, err
	}
	if start.Before(m.now()) {
		return nil, invalid("Cannot book appointments in the past")
	}
	if !end.After(start) {
		return nil, invalid("End time must be after start time")
	}

	doctor, err := m.store.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, lookup(err, "Doctor not found")
	}

	slots, err := m.resolver.ForDoctor(ctx, doctor, start)
	if err != nil {
		return nil, err
	}
	if len(slots) > 0 && !utils.IsWithinAnyWindow(start, end, slots) {
		return nil, &Error{Kind: KindAvailability, Reason: "Selected time is outside the doctor's available hours."}
	}

	appt = &models.Appointment{
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
		ReasonForVisit: req.ReasonForVisit,
		Status:         models.StatusPending,
		Origin:         models.OriginPatient,
	}
	appt.SetWindow(start, end)
	if req.Time != "" {
		appt.Time = req.Time
	}

	err = m.store.WithinTx(ctx, doctor.ID, patient.ID, func(tx Store) error {
		if err := m.ensureFree(ctx, tx, PartyDoctor, doctor.ID, start, end, "", "Doctor is already booked for this time."); err != nil {
			return err
		}
		if err := m.ensureFree(ctx, tx, PartyPatient, patient.ID, start, end, "", "You already have an appointment at this time."); err != nil {
			return err
		}
		return tx.CreateAppointment(ctx, appt)
	})
	if err != nil {
		return nil, m.txError(err, "Doctor is already booked for this time.")
	}

	appt.Doctor, appt.Patient = doctor, patient

	m.notify(ctx, notify.Message{
		Kind:            notify.KindBookingCreated,
		RecipientUserID: doctor.UserID,
		RecipientEmail:  doctor.Email,
		Subject:         "New appointment request",
		Text:            fmt.Sprintf("New appointment request from %s", patient.Name),
		AppointmentID:   appt.ID,
		Payload: map[string]any{
			"patientName": patient.Name,
			"startTime":   appt.StartTime,
			"endTime":     appt.EndTime,
			"reason":      appt.ReasonForVisit,
		},
	})
	m.notify(ctx, notify.Message{
		Kind:          notify.KindBookingCreated,
		TargetRole:    models.RoleAdmin,
		Text:          fmt.Sprintf("%s booked an appointment with Dr. %s", patient.Name, doctor.Name),
		AppointmentID: appt.ID,
	})

	return appt, nil
}

// Accept confirms a pending appointment. Conflicts are not re-checked here;
// they were enforced when the slot was booked.
func (m *Manager) Accept(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return m.decide(ctx, "accept", actor, id, models.StatusConfirmed)
}

func (m *Manager) Reject(ctx context.Context, actor models.Actor, id string) (*models.Appointment, error) {
	return m.decide(ctx, "reject", actor, id, models.StatusRejected)
}

func (m *Manager) decide(ctx context.Context, op string, actor models.Actor, id string, next models.AppointmentStatus) (appt *models.Appointment, err error) {
	defer func() { m.finish(op, appt, err) }()

	current, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor, err := m.store.GetDoctor(ctx, current.DoctorID)
	if err != nil {
		return nil, lookup(err, "Doctor not found")
	}
	if !actor.IsAdmin() && !(actor.Is(models.RoleDoctor) && actor.UserID == doctor.UserID) {
		return nil, forbidden("Only the assigned doctor can " + op + " this appointment")
	}

	appt, err = m.applyLocked(ctx, "", id, "Doctor is already booked for this time.", func(_ Store, a *models.Appointment) error {
		if !a.Status.CanTransition(next) {
			return badState(fmt.Sprintf("Cannot %s an appointment that is %s", op, a.Status))
		}
		a.Status = next
		if next == models.StatusConfirmed {
			now := m.now()
			a.ApprovedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	patient, perr := m.store.GetPatient(ctx, appt.PatientID)
	if perr != nil {
		m.log.Warn().Err(perr).Str("appointment_id", appt.ID).Msg("patient lookup for notification failed")
		return appt, nil
	}
	appt.Doctor, appt.Patient = doctor, patient

	msg := notify.Message{
		RecipientUserID: patient.UserID,
		RecipientEmail:  patient.Email,
		AppointmentID:   appt.ID,
		Payload: map[string]any{
			"doctorName": doctor.Name,
			"date":       appt.Date,
			"time":       appt.Time,
		},
	}
	if next == models.StatusConfirmed {
		msg.Kind = notify.KindApproved
		msg.Subject = "Appointment approved"
		msg.Text = fmt.Sprintf("Dr. %s has accepted your appointment request", doctor.Name)
	} else {
		msg.Kind = notify.KindRejected
		msg.Subject = "Appointment rejected"
		msg.Text = fmt.Sprintf("Dr. %s has rejected your appointment request", doctor.Name)
	}
	m.notify(ctx, msg)

	return appt, nil
}

// Complete is reserved for the assigned doctor and only applies to confirmed
// appointments.
func (m *Manager) Complete(ctx context.Context, actor models.Actor, id string) (appt *models.Appointment, err error) {
	defer func() { m.finish("complete", appt, err) }()

	if !actor.Is(models.RoleDoctor) {
		return nil, forbidden("Only doctors can mark appointments as completed")
	}
	current, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor, err := m.store.GetDoctorByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookup(err, "Doctor profile not found")
	}
	if doctor.ID != current.DoctorID {
		return nil, forbidden("Only the assigned doctor can complete this appointment")
	}

	appt, err = m.applyLocked(ctx, "", id, "Doctor is already booked for this time.", func(_ Store, a *models.Appointment) error {
		if !a.Status.CanTransition(models.StatusCompleted) {
			return badState("Only approved/accepted appointments can be marked as completed")
		}
		a.Status = models.StatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	appt.Doctor = doctor
	return appt, nil
}

// Cancel marks the appointment cancelled whatever its current status.
func (m *Manager) Cancel(ctx context.Context, actor models.Actor, id string) (appt *models.Appointment, err error) {
	defer func() { m.finish("cancel", appt, err) }()

	current, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor, patient, err := m.authorizeParty(ctx, actor, current)
	if err != nil {
		return nil, err
	}

	appt, err = m.applyLocked(ctx, "", id, "Doctor is already booked for this time.", func(_ Store, a *models.Appointment) error {
		a.Status = models.StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	appt.Doctor, appt.Patient = doctor, patient

	text := fmt.Sprintf("Appointment on %s has been cancelled", appt.StartTime.In(m.loc).Format("2006-01-02 15:04"))
	for _, to := range []struct{ userID, email string }{{doctor.UserID, doctor.Email}, {patient.UserID, patient.Email}} {
		if to.userID == actor.UserID {
			continue
		}
		m.notify(ctx, notify.Message{
			Kind:            notify.KindCancelled,
			RecipientUserID: to.userID,
			RecipientEmail:  to.email,
			Subject:         "Appointment cancelled",
			Text:            text,
			AppointmentID:   appt.ID,
		})
	}
	return appt, nil
}

// Reschedule moves an appointment in place, keeping its identity and status.
// Only the doctor's calendar is checked, and the appointment itself is
// excluded from that check.
func (m *Manager) Reschedule(ctx context.Context, actor models.Actor, id string, req TimeRequest) (appt *models.Appointment, err error) {
	defer func() { m.finish("reschedule", appt, err) }()

	current, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor, patient, err := m.authorizeParty(ctx, actor, current)
	if err != nil {
		return nil, err
	}
	if err := m.reschedulable(ctx, m.store, current); err != nil {
		return nil, err
	}

	start, end, err := m.window(req)
	if err != nil {
		return nil, err
	}
	if start.Before(m.now()) {
		return nil, invalid("Cannot reschedule to past time")
	}
	if !end.After(start) {
		return nil, invalid("End time must be after start time")
	}

	const busy = "Doctor is not available at the new time. Please choose a different slot."
	appt, err = m.applyLocked(ctx, current.DoctorID, id, busy, func(tx Store, a *models.Appointment) error {
		if err := m.reschedulable(ctx, tx, a); err != nil {
			return err
		}
		if err := m.ensureFree(ctx, tx, PartyDoctor, a.DoctorID, start, end, a.ID, busy); err != nil {
			return err
		}
		a.SetWindow(start, end)
		if req.Time != "" {
			a.Time = req.Time
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	appt.Doctor, appt.Patient = doctor, patient

	payload := map[string]any{"newStartTime": start, "newEndTime": end}
	m.notify(ctx, notify.Message{
		Kind:            notify.KindRescheduled,
		RecipientUserID: patient.UserID,
		RecipientEmail:  patient.Email,
		Subject:         "Appointment rescheduled",
		Text:            "Your appointment has been rescheduled",
		AppointmentID:   appt.ID,
		Payload:         payload,
	})
	m.notify(ctx, notify.Message{
		Kind:            notify.KindRescheduled,
		RecipientUserID: doctor.UserID,
		RecipientEmail:  doctor.Email,
		Subject:         "Appointment rescheduled",
		Text:            "Appointment has been rescheduled",
		AppointmentID:   appt.ID,
		Payload:         payload,
	})
	return appt, nil
}

// reschedulable refuses appointments that already have a consultation or
// have reached a terminal status.
func (m *Manager) reschedulable(ctx context.Context, gate ConsultationGate, appt *models.Appointment) error {
	exists, err := gate.HasConsultation(ctx, appt.ID)
	if err != nil {
		return internal("check consultation", err)
	}
	if exists {
		return badState("Cannot reschedule appointment - consultation already exists. Please create a new appointment instead.")
	}
	if appt.Status.IsTerminal() {
		return badState(fmt.Sprintf("Cannot reschedule an appointment that is %s", appt.Status))
	}
	return nil
}

// UpdateStatus applies a status given by label, including the legacy
// "approved" and "accepted" names.
func (m *Manager) UpdateStatus(ctx context.Context, actor models.Actor, id, raw string) (*models.Appointment, error) {
	status, err := models.ParseStatus(raw)
	if err != nil {
		return nil, invalid(err.Error())
	}
	switch status {
	case models.StatusConfirmed:
		return m.Accept(ctx, actor, id)
	case models.StatusRejected:
		return m.Reject(ctx, actor, id)
	case models.StatusCompleted:
		return m.Complete(ctx, actor, id)
	case models.StatusCancelled:
		return m.Cancel(ctx, actor, id)
	}
	return nil, badState("Appointments cannot be moved back to pending")
}

// window turns a TimeRequest into a concrete [start, end) in the manager's
// location.
func (m *Manager) window(req TimeRequest) (time.Time, time.Time, error) {
	explicit := req.StartTime != nil || req.EndTime != nil
	legacy := req.Date != "" || req.Time != ""

	switch {
	case explicit && legacy:
		return time.Time{}, time.Time{}, invalid("Provide either (startTime, endTime) or (date, time), not both")
	case explicit:
		if req.StartTime == nil || req.EndTime == nil {
			return time.Time{}, time.Time{}, invalid("Both startTime and endTime are required")
		}
		return req.StartTime.In(m.loc), req.EndTime.In(m.loc), nil
	case legacy:
		if req.Date == "" || req.Time == "" {
			return time.Time{}, time.Time{}, invalid("Both date and time are required")
		}
		day, err := utils.ParseDate(req.Date, m.loc)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("Invalid date: " + req.Date)
		}
		clock, err := utils.ValidClock(req.Time)
		if err != nil {
			return time.Time{}, time.Time{}, invalid("Invalid time: " + req.Time)
		}
		start := clock.On(day)
		return start, start.Add(m.duration), nil
	}
	return time.Time{}, time.Time{}, invalid("Either (startTime, endTime) or (date, time) must be provided")
}

func (m *Manager) ensureFree(ctx context.Context, tx Store, party Party, id string, start, end time.Time, excludeID, reason string) error {
	busy, err := m.conflicts.HasConflict(ctx, tx, party, id, start, end, excludeID)
	if err != nil {
		return err
	}
	if busy {
		return conflict(party, reason)
	}
	return nil
}

// txError maps a storage-level overlap refusal onto the doctor conflict the
// in-transaction check would have reported.
func (m *Manager) txError(err error, doctorBusy string) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, ErrSlotTaken):
		return conflict(PartyDoctor, doctorBusy)
	}
	return internal("save appointment", err)
}

// applyLocked re-reads the appointment under a row lock, lets change edit
// that copy and saves it in the same transaction. A non-empty doctorID is
// locked before the appointment row.
func (m *Manager) applyLocked(ctx context.Context, doctorID, id, doctorBusy string, change func(tx Store, appt *models.Appointment) error) (*models.Appointment, error) {
	var saved *models.Appointment
	err := m.store.WithinTx(ctx, doctorID, "", func(tx Store) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return lookup(err, "Appointment not found")
		}
		if err := change(tx, appt); err != nil {
			return err
		}
		if err := tx.SaveAppointment(ctx, appt); err != nil {
			return err
		}
		saved = appt
		return nil
	})
	if err != nil {
		return nil, m.txError(err, doctorBusy)
	}
	return saved, nil
}

func (m *Manager) load(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := m.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, lookup(err, "Appointment not found")
	}
	return appt, nil
}

// authorizeParty lets admins, the booked patient and the assigned doctor act
// on an appointment.
func (m *Manager) authorizeParty(ctx context.Context, actor models.Actor, appt *models.Appointment) (*models.Doctor, *models.Patient, error) {
	doctor, err := m.store.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, nil, lookup(err, "Doctor not found")
	}
	patient, err := m.store.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return nil, nil, lookup(err, "Patient not found")
	}
	switch {
	case actor.IsAdmin():
	case actor.Is(models.RoleDoctor) && actor.UserID == doctor.UserID:
	case actor.Is(models.RolePatient) && actor.UserID == patient.UserID:
	default:
		return nil, nil, forbidden("You are not a party to this appointment")
	}
	return doctor, patient, nil
}

func (m *Manager) notify(ctx context.Context, msg notify.Message) {
	if m.notifier == nil {
		return
	}
	// Delivery failures are already logged per sink.
	_ = m.notifier.Notify(ctx, msg)
}

func (m *Manager) finish(op string, appt *models.Appointment, err error) {
	if err == nil {
		m.metrics.ObserveOperation(op, "ok")
		ev := m.log.Info().Str("op", op)
		if appt != nil {
			ev = ev.Str("appointment_id", appt.ID).
				Str("doctor_id", appt.DoctorID).
				Str("patient_id", appt.PatientID).
				Str("status", string(appt.Status))
		}
		ev.Msg("appointment operation succeeded")
		return
	}

	kind := KindOf(err)
	m.metrics.ObserveOperation(op, string(kind))
	var se *Error
	if errors.As(err, &se) && kind == KindConflict {
		m.metrics.ObserveConflict(string(se.Party))
	}
	ev := m.log.Info()
	if kind == KindInternal {
		ev = m.log.Error()
	}
	ev.Err(err).Str("op", op).Str("kind", string(kind)).Msg("appointment operation rejected")
}
