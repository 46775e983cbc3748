package models

import "github.com/lib/pq"

type ConsultationStatus string

const (
	ConsultationPending ConsultationStatus = "PENDING"
	ConsultationReady   ConsultationStatus = "READY"
	ConsultationActive  ConsultationStatus = "ACTIVE"
	ConsultationEnded   ConsultationStatus = "ENDED"
)

// Consultation is the clinical record attached to an appointment. Once one
// exists the appointment can no longer be rescheduled.
type Consultation struct {
	BaseModel
	AppointmentID string             `json:"appointment_id" gorm:"type:varchar(36);index;not null"`
	PatientID     string             `json:"patient_id" gorm:"type:varchar(36);not null"`
	DoctorID      string             `json:"doctor_id" gorm:"type:varchar(36);not null"`
	Symptoms      pq.StringArray     `json:"symptoms" gorm:"type:text[]"`
	Diagnosis     string             `json:"diagnosis"`
	Status        ConsultationStatus `json:"consultation_status" gorm:"type:varchar(20);default:'PENDING'"`
}
