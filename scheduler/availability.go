package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

// OpenSlot is a published window that no active appointment touches.
type OpenSlot struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// SetAvailability replaces the calling doctor's default schedule, or, when
// date is set, the override for that one day.
func (m *Manager) SetAvailability(ctx context.Context, actor models.Actor, date *time.Time, slots []models.TimeSlot) (doctor *models.Doctor, err error) {
	defer func() {
		if err != nil {
			m.finish("set_availability", nil, err)
		}
	}()

	if !actor.Is(models.RoleDoctor) {
		return nil, forbidden("Only doctors can set availability")
	}
	for _, slot := range slots {
		from, err := utils.ValidClock(slot.From)
		if err != nil {
			return nil, invalid(fmt.Sprintf("Invalid slot start: %v", err))
		}
		to, err := utils.ValidClock(slot.To)
		if err != nil {
			return nil, invalid(fmt.Sprintf("Invalid slot end: %v", err))
		}
		if from.Hour*60+from.Minute >= to.Hour*60+to.Minute {
			return nil, invalid(fmt.Sprintf("Slot %s-%s must end after it starts", slot.From, slot.To))
		}
	}

	doctor, err = m.store.GetDoctorByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, lookup(err, "Doctor profile not found")
	}

	if date == nil {
		doctor.Availability = slots
		if err := m.store.SaveDoctor(ctx, doctor); err != nil {
			return nil, internal("save doctor", err)
		}
		m.log.Info().Str("doctor_id", doctor.ID).Int("slots", len(slots)).Msg("default availability updated")
		return doctor, nil
	}

	override := &models.Availability{
		DoctorID: doctor.ID,
		Date:     utils.StartOfDay(*date, m.loc),
		Slots:    slots,
	}
	if err := m.store.UpsertAvailability(ctx, override); err != nil {
		return nil, internal("save availability", err)
	}
	m.log.Info().Str("doctor_id", doctor.ID).
		Time("date", override.Date).
		Int("slots", len(slots)).
		Msg("date availability updated")
	return doctor, nil
}

// AvailableSlots lists the doctor's windows on date that are still free.
func (m *Manager) AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]OpenSlot, error) {
	day := utils.StartOfDay(date, m.loc)

	slots, err := m.resolver.Resolve(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return []OpenSlot{}, nil
	}

	busy, err := m.store.ListAppointments(ctx, AppointmentFilter{
		DoctorID:  doctorID,
		Statuses:  models.ActiveStatuses(),
		StartFrom: day,
		StartTo:   day.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, internal("list appointments", err)
	}

	free := utils.FreeWindows(slots, day, busy)
	out := make([]OpenSlot, 0, len(free))
	for _, w := range free {
		out = append(out, OpenSlot{From: w.Slot.From, To: w.Slot.To, StartTime: w.Start, EndTime: w.End})
	}
	return out, nil
}
