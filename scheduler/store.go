package scheduler

import (
	"context"
	"time"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// OverlapQuery selects appointments on one party's calendar whose
// [StartTime, EndTime) overlaps [Start, End).
type OverlapQuery struct {
	Party     Party
	PartyID   string
	Start     time.Time
	End       time.Time
	Statuses  []models.AppointmentStatus
	ExcludeID string
}

// AppointmentFilter narrows ListAppointments. Zero values do not filter.
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Statuses  []models.AppointmentStatus
	StartFrom time.Time
	StartTo   time.Time
}

type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	// LockAppointment re-reads the appointment and holds its row until the
	// surrounding WithinTx returns.
	LockAppointment(ctx context.Context, id string) (*models.Appointment, error)
	SaveAppointment(ctx context.Context, a *models.Appointment) error
	// FindOverlapping returns nil, nil when nothing overlaps.
	FindOverlapping(ctx context.Context, q OverlapQuery) (*models.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error)
}

type AvailabilityRepository interface {
	// DateAvailability returns the override for (doctorID, day), or nil, nil.
	DateAvailability(ctx context.Context, doctorID string, day time.Time) (*models.Availability, error)
	UpsertAvailability(ctx context.Context, a *models.Availability) error
}

// Directory resolves doctor and patient profiles.
type Directory interface {
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID string) (*models.Doctor, error)
	SaveDoctor(ctx context.Context, d *models.Doctor) error
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	GetPatientByUserID(ctx context.Context, userID string) (*models.Patient, error)
}

// ConsultationGate answers whether an appointment already has a consultation.
type ConsultationGate interface {
	HasConsultation(ctx context.Context, appointmentID string) (bool, error)
	CreateConsultation(ctx context.Context, c *models.Consultation) error
}

type Store interface {
	AppointmentRepository
	AvailabilityRepository
	Directory
	ConsultationGate

	// WithinTx runs fn against a transactional Store after serializing on the
	// given doctor and patient (either may be empty). Conflict checks and the
	// write they guard must happen inside fn.
	WithinTx(ctx context.Context, doctorID, patientID string, fn func(tx Store) error) error
}
