package models

import (
	"fmt"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Origin records who initiated the booking.
type Origin string

const (
	OriginPatient Origin = "patient"
	OriginLHW     Origin = "lhw"
)

// ParseStatus accepts the canonical names plus the legacy "approved" and
// "accepted" labels, both of which mean confirmed.
func ParseStatus(raw string) (AppointmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "confirmed", "approved", "accepted":
		return StatusConfirmed, nil
	case "rejected":
		return StatusRejected, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", raw)
}

// ActiveStatuses are the statuses that hold a time slot.
func ActiveStatuses() []AppointmentStatus {
	return []AppointmentStatus{StatusPending, StatusConfirmed}
}

func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the state machine allows moving from s to next.
// Cancellation is handled separately and is always allowed.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusRejected || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

type Appointment struct {
	BaseModel
	PatientID      string            `json:"patient_id" gorm:"type:varchar(36);index;not null"`
	Patient        *Patient          `json:"patient,omitempty" gorm:"foreignKey:PatientID"`
	DoctorID       string            `json:"doctor_id" gorm:"type:varchar(36);index;not null"`
	Doctor         *Doctor           `json:"doctor,omitempty" gorm:"foreignKey:DoctorID"`
	Date           time.Time         `json:"date" gorm:"not null"`
	Time           string            `json:"time"` // legacy "H:MM" display value
	StartTime      time.Time         `json:"start_time" gorm:"not null;index"`
	EndTime        time.Time         `json:"end_time" gorm:"not null"`
	ReasonForVisit string            `json:"reason_for_visit" gorm:"not null"`
	Status         AppointmentStatus `json:"status" gorm:"type:varchar(20);index;not null;default:'pending'"`
	Origin         Origin            `json:"origin" gorm:"type:varchar(20);default:'patient'"`
	ApprovedAt     *time.Time        `json:"approved_at,omitempty"`
}

// SetWindow moves the appointment to [start, end) and refreshes the legacy
// date/time display fields.
func (a *Appointment) SetWindow(start, end time.Time) {
	a.StartTime = start
	a.EndTime = end
	a.Date = start
	a.Time = fmt.Sprintf("%d:%02d", start.Hour(), start.Minute())
}

// Overlaps uses half-open interval semantics; touching endpoints do not overlap.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime.After(start)
}
