package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/notify"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler/schedulertest"
)

var (
	fixedNow = time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)
	morning  = models.TimeSlot{From: "09:00", To: "12:00"}

	patientP1 = models.Actor{UserID: "u-p1", Role: models.RolePatient}
	patientP2 = models.Actor{UserID: "u-p2", Role: models.RolePatient}
	doctorD   = models.Actor{UserID: "u-d1", Role: models.RoleDoctor}
	doctorD2  = models.Actor{UserID: "u-d2", Role: models.RoleDoctor}
	admin     = models.Actor{UserID: "u-admin", Role: models.RoleAdmin}
	lhw       = models.Actor{UserID: "u-lhw", Role: models.RoleLHW}
)

type fixture struct {
	store    *schedulertest.Store
	notifier *schedulertest.Notifier
	manager  *scheduler.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := schedulertest.NewStore()
	store.AddDoctor("d1", "u-d1", "Ada", morning)
	store.AddDoctor("d2", "u-d2", "Grace", morning)
	store.AddDoctor("d3", "u-d3", "Barbara", morning)
	store.AddDoctor("d-open", "u-open", "Open")
	store.AddPatient("p1", "u-p1", "Alice")
	store.AddPatient("p2", "u-p2", "Bob")

	n := &schedulertest.Notifier{}
	m := scheduler.NewManager(store, n, scheduler.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Logger:   zerolog.Nop(),
	})
	return &fixture{store: store, notifier: n, manager: m}
}

func at(hour, minute int) *time.Time {
	t := time.Date(2025, 6, 10, hour, minute, 0, 0, time.UTC)
	return &t
}

func book(doctorID string, start, end *time.Time) scheduler.BookingRequest {
	return scheduler.BookingRequest{
		DoctorID:       doctorID,
		ReasonForVisit: "checkup",
		TimeRequest:    scheduler.TimeRequest{StartTime: start, EndTime: end},
	}
}

func requireKind(t *testing.T, err error, kind scheduler.Kind) *scheduler.Error {
	t.Helper()
	require.Error(t, err)
	var se *scheduler.Error
	require.True(t, errors.As(err, &se), "expected *scheduler.Error, got %T", err)
	require.Equal(t, kind, se.Kind, se.Reason)
	return se
}

func TestCreate_BookingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, first.Status)
	assert.Equal(t, "p1", first.PatientID)
	assert.Equal(t, "9:00", first.Time)

	_, err = f.manager.Create(ctx, patientP2, book("d1", at(9, 30), at(10, 30)))
	se := requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyDoctor, se.Party)
	assert.Equal(t, "Doctor is already booked for this time.", se.Reason)

	_, err = f.manager.Create(ctx, patientP1, book("d2", at(11, 0), at(11, 30)))
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, patientP1, book("d3", at(9, 15), at(9, 45)))
	se = requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyPatient, se.Party)
	assert.Equal(t, "You already have an appointment at this time.", se.Reason)
}

func TestCreate_NotifiesDoctorAndAdmins(t *testing.T) {
	f := newFixture(t)

	appt, err := f.manager.Create(context.Background(), patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	toDoctor := f.notifier.To("u-d1")
	require.Len(t, toDoctor, 1)
	assert.Equal(t, notify.KindBookingCreated, toDoctor[0].Kind)
	assert.Equal(t, appt.ID, toDoctor[0].AppointmentID)
	assert.Equal(t, "New appointment request from Alice", toDoctor[0].Text)

	var adminMsgs int
	for _, m := range f.notifier.Sent() {
		if m.TargetRole == models.RoleAdmin {
			adminMsgs++
			assert.Equal(t, "Alice booked an appointment with Dr. Ada", m.Text)
		}
	}
	assert.Equal(t, 1, adminMsgs)
}

func TestCreate_NotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")

	appt, err := f.manager.Create(context.Background(), patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	stored, err := f.store.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := fixedNow.Add(-time.Hour)
	pastEnd := fixedNow.Add(-30 * time.Minute)

	tests := []struct {
		name   string
		actor  models.Actor
		req    scheduler.BookingRequest
		kind   scheduler.Kind
		reason string
	}{
		{"not a patient", doctorD, book("d1", at(9, 0), at(10, 0)), scheduler.KindForbidden, "Only patients can book appointments"},
		{"missing doctor", patientP1, scheduler.BookingRequest{ReasonForVisit: "x"}, scheduler.KindValidation, "doctorId and reason_for_visit are required"},
		{"missing reason", patientP1, scheduler.BookingRequest{DoctorID: "d1"}, scheduler.KindValidation, "doctorId and reason_for_visit are required"},
		{"no time at all", patientP1, scheduler.BookingRequest{DoctorID: "d1", ReasonForVisit: "x"}, scheduler.KindValidation, "Either (startTime, endTime) or (date, time) must be provided"},
		{"start in the past", patientP1, book("d1", &past, &pastEnd), scheduler.KindValidation, "Cannot book appointments in the past"},
		{"end equals start", patientP1, book("d1", at(10, 0), at(10, 0)), scheduler.KindValidation, "End time must be after start time"},
		{"end before start", patientP1, book("d1", at(10, 0), at(9, 0)), scheduler.KindValidation, "End time must be after start time"},
		{"unknown doctor", patientP1, book("nope", at(9, 0), at(10, 0)), scheduler.KindNotFound, "Doctor not found"},
		{"outside hours", patientP1, book("d1", at(13, 0), at(14, 0)), scheduler.KindAvailability, "Selected time is outside the doctor's available hours."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Create(ctx, tt.actor, tt.req)
			se := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.reason, se.Reason)
		})
	}
}

func TestCreate_MixedTimeForms(t *testing.T) {
	f := newFixture(t)
	req := book("d1", at(9, 0), at(10, 0))
	req.Date = "2025-06-10"
	req.Time = "9:00"

	_, err := f.manager.Create(context.Background(), patientP1, req)
	requireKind(t, err, scheduler.KindValidation)

	partial := scheduler.BookingRequest{DoctorID: "d1", ReasonForVisit: "x", TimeRequest: scheduler.TimeRequest{StartTime: at(9, 0)}}
	_, err = f.manager.Create(context.Background(), patientP1, partial)
	requireKind(t, err, scheduler.KindValidation)
}

func TestCreate_LegacyDateTimeImpliesDefaultDuration(t *testing.T) {
	f := newFixture(t)

	for _, clock := range []string{"10:00", "10:00 am", "10:00AM"} {
		t.Run(clock, func(t *testing.T) {
			f := newFixture(t)
			appt, err := f.manager.Create(context.Background(), patientP1, scheduler.BookingRequest{
				DoctorID:       "d1",
				ReasonForVisit: "x",
				TimeRequest:    scheduler.TimeRequest{Date: "2025-06-10", Time: clock},
			})
			require.NoError(t, err)
			assert.Equal(t, *at(10, 0), appt.StartTime)
			assert.Equal(t, *at(11, 0), appt.EndTime)
			assert.Equal(t, clock, appt.Time)
		})
	}

	_, err := f.manager.Create(context.Background(), patientP1, scheduler.BookingRequest{
		DoctorID:       "d1",
		ReasonForVisit: "x",
		TimeRequest:    scheduler.TimeRequest{Date: "2025-06-10", Time: "ten o'clock"},
	})
	requireKind(t, err, scheduler.KindValidation)
}

func TestCreate_ContainmentUsesSingleWindow(t *testing.T) {
	f := newFixture(t)
	f.store.AddDoctor("d-ten", "u-ten", "Ten", models.TimeSlot{From: "10:00", To: "11:00"})

	_, err := f.manager.Create(context.Background(), patientP1, book("d-ten", at(10, 0), at(10, 30)))
	require.NoError(t, err)

	_, err = f.manager.Create(context.Background(), patientP2, book("d-ten", at(10, 45), at(11, 15)))
	requireKind(t, err, scheduler.KindAvailability)
}

func TestCreate_EmptyAvailabilityBypassesContainment(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Create(context.Background(), patientP1, book("d-open", at(22, 0), at(23, 0)))
	require.NoError(t, err)

	// conflicts still apply
	_, err = f.manager.Create(context.Background(), patientP2, book("d-open", at(22, 30), at(23, 30)))
	se := requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyDoctor, se.Party)
}

func TestCreate_AdjacentAppointmentsDoNotConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Create(context.Background(), patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	_, err = f.manager.Create(context.Background(), patientP2, book("d1", at(10, 0), at(11, 0)))
	require.NoError(t, err)
}

func TestCreate_InactiveAppointmentsFreeTheSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	_, err = f.manager.Reject(ctx, doctorD, first.ID)
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, patientP2, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
}

func TestCreate_DateOverrideReplacesDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	_, err := f.manager.SetAvailability(ctx, doctorD, &day, []models.TimeSlot{{From: "2:00 PM", To: "4:00 PM"}})
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	requireKind(t, err, scheduler.KindAvailability)

	_, err = f.manager.Create(ctx, patientP1, book("d1", at(14, 0), at(15, 0)))
	require.NoError(t, err)
}

func TestCreate_ConcurrentBookingsForOneSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		f.store.AddPatient("pc-"+id, "u-pc-"+id, "Patient "+id)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		actor := models.Actor{UserID: "u-pc-" + string(rune('a'+i)), Role: models.RolePatient}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.manager.Create(ctx, actor, book("d1", at(9, 0), at(10, 0))); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	active, err := f.store.ListAppointments(ctx, scheduler.AppointmentFilter{DoctorID: "d1", Statuses: models.ActiveStatuses()})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAcceptReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	_, err = f.manager.Accept(ctx, doctorD2, appt.ID)
	requireKind(t, err, scheduler.KindForbidden)

	accepted, err := f.manager.Accept(ctx, doctorD, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, accepted.Status)
	require.NotNil(t, accepted.ApprovedAt)
	assert.Equal(t, fixedNow, *accepted.ApprovedAt)

	toPatient := f.notifier.To("u-p1")
	require.Len(t, toPatient, 1)
	assert.Equal(t, notify.KindApproved, toPatient[0].Kind)
	assert.Equal(t, "Dr. Ada has accepted your appointment request", toPatient[0].Text)

	_, err = f.manager.Reject(ctx, doctorD, appt.ID)
	requireKind(t, err, scheduler.KindState)

	second, err := f.manager.Create(ctx, patientP2, book("d1", at(11, 0), at(12, 0)))
	require.NoError(t, err)
	rejected, err := f.manager.Reject(ctx, admin, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Nil(t, rejected.ApprovedAt)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	_, err = f.manager.Complete(ctx, doctorD, appt.ID)
	se := requireKind(t, err, scheduler.KindState)
	assert.Equal(t, "Only approved/accepted appointments can be marked as completed", se.Reason)

	_, err = f.manager.Accept(ctx, doctorD, appt.ID)
	require.NoError(t, err)

	_, err = f.manager.Complete(ctx, patientP1, appt.ID)
	se = requireKind(t, err, scheduler.KindForbidden)
	assert.Equal(t, "Only doctors can mark appointments as completed", se.Reason)

	_, err = f.manager.Complete(ctx, doctorD2, appt.ID)
	requireKind(t, err, scheduler.KindForbidden)

	done, err := f.manager.Complete(ctx, doctorD, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestCancel_IsUnconditional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	_, err = f.manager.Reject(ctx, doctorD, appt.ID)
	require.NoError(t, err)

	_, err = f.manager.Cancel(ctx, patientP2, appt.ID)
	requireKind(t, err, scheduler.KindForbidden)

	cancelled, err := f.manager.Cancel(ctx, patientP1, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	toDoctor := f.notifier.To("u-d1")
	require.NotEmpty(t, toDoctor)
	assert.Equal(t, notify.KindCancelled, toDoctor[len(toDoctor)-1].Kind)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	_, err = f.manager.Accept(ctx, doctorD, appt.ID)
	require.NoError(t, err)

	// moving onto its own slot is not a conflict
	same, err := f.manager.Reschedule(ctx, patientP1, appt.ID, scheduler.TimeRequest{StartTime: at(9, 0), EndTime: at(10, 0)})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, same.ID)

	moved, err := f.manager.Reschedule(ctx, doctorD, appt.ID, scheduler.TimeRequest{StartTime: at(9, 30), EndTime: at(10, 30)})
	require.NoError(t, err)
	assert.Equal(t, appt.ID, moved.ID)
	assert.Equal(t, models.StatusConfirmed, moved.Status)
	assert.Equal(t, *at(9, 30), moved.StartTime)
	assert.Equal(t, "9:30", moved.Time)

	stored, err := f.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, *at(10, 30), stored.EndTime)

	assert.NotEmpty(t, f.notifier.To("u-p1"))
	var rescheduled int
	for _, m := range f.notifier.Sent() {
		if m.Kind == notify.KindRescheduled {
			rescheduled++
		}
	}
	assert.Equal(t, 4, rescheduled)
}

func TestReschedule_DoctorConflictOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, patientP2, book("d1", at(10, 0), at(11, 0)))
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, patientP1, book("d2", at(11, 0), at(12, 0)))
	require.NoError(t, err)

	_, err = f.manager.Reschedule(ctx, patientP1, a1.ID, scheduler.TimeRequest{StartTime: at(10, 30), EndTime: at(11, 30)})
	se := requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyDoctor, se.Party)
	assert.Equal(t, "Doctor is not available at the new time. Please choose a different slot.", se.Reason)

	// P1 is busy with d2 at 11:00 but the patient calendar is not consulted
	_, err = f.manager.Reschedule(ctx, patientP1, a1.ID, scheduler.TimeRequest{StartTime: at(11, 0), EndTime: at(11, 30)})
	require.NoError(t, err)
}

func TestReschedule_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	past := fixedNow.Add(-time.Hour)
	_, err = f.manager.Reschedule(ctx, patientP1, appt.ID, scheduler.TimeRequest{StartTime: &past, EndTime: at(9, 0)})
	se := requireKind(t, err, scheduler.KindValidation)
	assert.Equal(t, "Cannot reschedule to past time", se.Reason)

	_, err = f.manager.Reschedule(ctx, patientP2, appt.ID, scheduler.TimeRequest{StartTime: at(11, 0), EndTime: at(12, 0)})
	requireKind(t, err, scheduler.KindForbidden)

	_, err = f.manager.Cancel(ctx, patientP1, appt.ID)
	require.NoError(t, err)
	_, err = f.manager.Reschedule(ctx, patientP1, appt.ID, scheduler.TimeRequest{StartTime: at(11, 0), EndTime: at(12, 0)})
	requireKind(t, err, scheduler.KindState)

	_, err = f.manager.Reschedule(ctx, patientP1, "missing", scheduler.TimeRequest{StartTime: at(11, 0), EndTime: at(12, 0)})
	requireKind(t, err, scheduler.KindNotFound)
}

func TestReschedule_ConsultationFreezesAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	require.NoError(t, f.store.CreateConsultation(ctx, &models.Consultation{AppointmentID: appt.ID}))

	for _, req := range []scheduler.TimeRequest{
		{StartTime: at(11, 0), EndTime: at(12, 0)},
		{StartTime: at(11, 0), EndTime: at(10, 0)},
		{},
	} {
		_, err = f.manager.Reschedule(ctx, patientP1, appt.ID, req)
		se := requireKind(t, err, scheduler.KindState)
		assert.Contains(t, se.Reason, "consultation already exists")
	}
}

func TestUpdateStatus_LegacyLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	a2, err := f.manager.Create(ctx, patientP2, book("d1", at(10, 0), at(11, 0)))
	require.NoError(t, err)

	got, err := f.manager.UpdateStatus(ctx, doctorD, a1.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	got, err = f.manager.UpdateStatus(ctx, doctorD, a2.ID, "accepted")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	_, err = f.manager.UpdateStatus(ctx, doctorD, a1.ID, "pending")
	requireKind(t, err, scheduler.KindState)

	_, err = f.manager.UpdateStatus(ctx, doctorD, a1.ID, "bogus")
	requireKind(t, err, scheduler.KindValidation)
}

func TestStartConsultation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.manager.StartConsultation(ctx, patientP1, scheduler.ConsultationRequest{PatientID: "p1", DoctorID: "d1"})
	requireKind(t, err, scheduler.KindForbidden)

	appt, consult, err := f.manager.StartConsultation(ctx, lhw, scheduler.ConsultationRequest{
		PatientID: "p1",
		DoctorID:  "d1",
		Symptoms:  []string{"fever", "cough"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, appt.Status)
	assert.Equal(t, models.OriginLHW, appt.Origin)
	assert.Equal(t, fixedNow, appt.StartTime)
	assert.Equal(t, fixedNow.Add(30*time.Minute), appt.EndTime)
	assert.Equal(t, "LHW-initiated consultation for Alice", appt.ReasonForVisit)
	assert.Equal(t, models.ConsultationReady, consult.Status)
	assert.Equal(t, "Pending", consult.Diagnosis)
	assert.Equal(t, []string{"fever", "cough"}, []string(consult.Symptoms))

	_, err = f.manager.Reschedule(ctx, admin, appt.ID, scheduler.TimeRequest{StartTime: at(11, 0), EndTime: at(12, 0)})
	requireKind(t, err, scheduler.KindState)

	_, _, err = f.manager.StartConsultation(ctx, lhw, scheduler.ConsultationRequest{PatientID: "p2", DoctorID: "d1"})
	se := requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyDoctor, se.Party)
}

func TestStorageFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	f.store.FailSaves(errors.New("connection reset"))
	_, err = f.manager.Accept(ctx, doctorD, appt.ID)
	requireKind(t, err, scheduler.KindInternal)
}

type slotTakenStore struct{ *schedulertest.Store }

func (s slotTakenStore) WithinTx(ctx context.Context, d, p string, fn func(tx scheduler.Store) error) error {
	if err := s.Store.WithinTx(ctx, d, p, fn); err != nil {
		return err
	}
	return scheduler.ErrSlotTaken
}

func TestCreate_StorageOverlapRefusalIsDoctorConflict(t *testing.T) {
	f := newFixture(t)
	m := scheduler.NewManager(slotTakenStore{f.store}, f.notifier, scheduler.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Logger:   zerolog.Nop(),
	})

	_, err := m.Create(context.Background(), patientP1, book("d1", at(9, 0), at(10, 0)))
	se := requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyDoctor, se.Party)
	assert.Empty(t, f.notifier.Sent())
}

// cancelAfterRead cancels the appointment through another manager as soon as
// the first unlocked read returns, so the operation under test holds a stale
// copy when it reaches its write.
type cancelAfterRead struct {
	*schedulertest.Store
	once   sync.Once
	cancel func()
}

func (s *cancelAfterRead) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := s.Store.GetAppointment(ctx, id)
	s.once.Do(s.cancel)
	return a, err
}

func newCancelRace(t *testing.T, f *fixture, id string) *scheduler.Manager {
	t.Helper()
	racing := &cancelAfterRead{Store: f.store, cancel: func() {
		_, err := f.manager.Cancel(context.Background(), patientP1, id)
		require.NoError(t, err)
	}}
	return scheduler.NewManager(racing, f.notifier, scheduler.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Logger:   zerolog.Nop(),
	})
}

func TestTransitions_ConcurrentCancelIsNotOverwritten(t *testing.T) {
	ops := map[string]func(m *scheduler.Manager, id string) error{
		"accept": func(m *scheduler.Manager, id string) error {
			_, err := m.Accept(context.Background(), doctorD, id)
			return err
		},
		"reject": func(m *scheduler.Manager, id string) error {
			_, err := m.Reject(context.Background(), doctorD, id)
			return err
		},
		"reschedule": func(m *scheduler.Manager, id string) error {
			_, err := m.Reschedule(context.Background(), doctorD, id, scheduler.TimeRequest{StartTime: at(11, 0), EndTime: at(12, 0)})
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			appt, err := f.manager.Create(context.Background(), patientP1, book("d1", at(9, 0), at(10, 0)))
			require.NoError(t, err)

			err = op(newCancelRace(t, f, appt.ID), appt.ID)
			requireKind(t, err, scheduler.KindState)

			stored, err := f.store.GetAppointment(context.Background(), appt.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusCancelled, stored.Status)
			assert.Equal(t, *at(9, 0), stored.StartTime)
			assert.Nil(t, stored.ApprovedAt)
		})
	}
}

func TestComplete_ConcurrentCancelIsNotOverwritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	_, err = f.manager.Accept(ctx, doctorD, appt.ID)
	require.NoError(t, err)

	_, err = newCancelRace(t, f, appt.ID).Complete(ctx, doctorD, appt.ID)
	requireKind(t, err, scheduler.KindState)

	stored, err := f.store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}

func TestAccept_StorageOverlapRefusalIsDoctorConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt, err := f.manager.Create(ctx, patientP1, book("d1", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	f.store.FailSaves(fmt.Errorf("%w: appointments_doctor_no_overlap", scheduler.ErrSlotTaken))
	_, err = f.manager.Accept(ctx, doctorD, appt.ID)
	se := requireKind(t, err, scheduler.KindConflict)
	assert.Equal(t, scheduler.PartyDoctor, se.Party)
}
