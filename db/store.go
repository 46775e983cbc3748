package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
)

const sqlStateExclusionViolation = "23P01"

var _ scheduler.Store = (*Store)(nil)

// Store is the Postgres implementation of scheduler.Store.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// WithinTx locks the doctor row and then the patient row before running fn,
// so concurrent bookings touching the same party are serialized. The order
// is fixed to keep two transactions from waiting on each other.
func (s *Store) WithinTx(ctx context.Context, doctorID, patientID string, fn func(tx scheduler.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if doctorID != "" {
			if err := lockRow(tx, "doctors", doctorID); err != nil {
				return err
			}
		}
		if patientID != "" {
			if err := lockRow(tx, "patients", patientID); err != nil {
				return err
			}
		}
		return fn(&Store{db: tx})
	})
}

func lockRow(tx *gorm.DB, table, id string) error {
	var locked []string
	if err := tx.Raw(`SELECT id FROM `+table+` WHERE id = ? FOR UPDATE`, id).Scan(&locked).Error; err != nil {
		return fmt.Errorf("lock %s %s: %w", table, id, err)
	}
	if len(locked) == 0 {
		return scheduler.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error
	return writeError(err)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, readError(err)
	}
	return &a, nil
}

func (s *Store) LockAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, readError(err)
	}
	return &a, nil
}

func (s *Store) SaveAppointment(ctx context.Context, a *models.Appointment) error {
	err := s.db.WithContext(ctx).Omit(clause.Associations).Save(a).Error
	return writeError(err)
}

func (s *Store) FindOverlapping(ctx context.Context, q scheduler.OverlapQuery) (*models.Appointment, error) {
	var column string
	switch q.Party {
	case scheduler.PartyDoctor:
		column = "doctor_id"
	case scheduler.PartyPatient:
		column = "patient_id"
	default:
		return nil, fmt.Errorf("unknown party %q", q.Party)
	}

	query := s.db.WithContext(ctx).
		Where(column+" = ?", q.PartyID).
		Where("start_time < ? AND end_time > ?", q.End, q.Start)
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if q.ExcludeID != "" {
		query = query.Where("id <> ?", q.ExcludeID)
	}

	var found []models.Appointment
	if err := query.Order("start_time").Limit(1).Find(&found).Error; err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *Store) ListAppointments(ctx context.Context, f scheduler.AppointmentFilter) ([]models.Appointment, error) {
	query := s.db.WithContext(ctx).Preload("Doctor").Preload("Patient")
	if f.DoctorID != "" {
		query = query.Where("doctor_id = ?", f.DoctorID)
	}
	if f.PatientID != "" {
		query = query.Where("patient_id = ?", f.PatientID)
	}
	if len(f.Statuses) > 0 {
		query = query.Where("status IN ?", f.Statuses)
	}
	if !f.StartFrom.IsZero() {
		query = query.Where("start_time >= ?", f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		query = query.Where("start_time < ?", f.StartTo)
	}

	var list []models.Appointment
	if err := query.Order("start_time").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) DateAvailability(ctx context.Context, doctorID string, day time.Time) (*models.Availability, error) {
	var found []models.Availability
	err := s.db.WithContext(ctx).
		Where("doctor_id = ? AND date = ?", doctorID, day.Format("2006-01-02")).
		Order("updated_at DESC").
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// UpsertAvailability keeps one override row per (doctor, date).
func (s *Store) UpsertAvailability(ctx context.Context, a *models.Availability) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doctor_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"slots", "updated_at"}),
	}).Create(a).Error
}

func (s *Store) GetDoctor(ctx context.Context, id string) (*models.Doctor, error) {
	var d models.Doctor
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, readError(err)
	}
	return &d, nil
}

func (s *Store) GetDoctorByUserID(ctx context.Context, userID string) (*models.Doctor, error) {
	var d models.Doctor
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&d).Error; err != nil {
		return nil, readError(err)
	}
	return &d, nil
}

func (s *Store) SaveDoctor(ctx context.Context, d *models.Doctor) error {
	return s.db.WithContext(ctx).Save(d).Error
}

func (s *Store) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, readError(err)
	}
	return &p, nil
}

func (s *Store) GetPatientByUserID(ctx context.Context, userID string) (*models.Patient, error) {
	var p models.Patient
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, readError(err)
	}
	return &p, nil
}

func (s *Store) HasConsultation(ctx context.Context, appointmentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Consultation{}).
		Where("appointment_id = ?", appointmentID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) CreateConsultation(ctx context.Context, c *models.Consultation) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) SaveNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func readError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return scheduler.ErrNotFound
	}
	return err
}

// writeError turns an exclusion constraint violation into ErrSlotTaken.
func writeError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateExclusionViolation {
		return fmt.Errorf("%w: %s", scheduler.ErrSlotTaken, pgErr.ConstraintName)
	}
	return err
}
