// Package schedulertest provides in-memory doubles for the scheduler's
// storage and notification ports.
package schedulertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/notify"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
)

// Store is an in-memory scheduler.Store. WithinTx serializes on one mutex
// rather than per-party locks.
type Store struct {
	mu            sync.Mutex
	tx            sync.Mutex
	appointments  map[string]*models.Appointment
	doctors       map[string]*models.Doctor
	patients      map[string]*models.Patient
	availability  map[string]*models.Availability
	consultations map[string]*models.Consultation

	failSave error
}

var _ scheduler.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		appointments:  map[string]*models.Appointment{},
		doctors:       map[string]*models.Doctor{},
		patients:      map[string]*models.Patient{},
		availability:  map[string]*models.Availability{},
		consultations: map[string]*models.Consultation{},
	}
}

// AddDoctor registers a doctor whose default schedule is slots.
func (s *Store) AddDoctor(id, userID, name string, slots ...models.TimeSlot) *models.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &models.Doctor{UserID: userID, Name: name, Email: userID + "@clinic.test", Availability: slots}
	d.ID = id
	s.doctors[id] = d
	return d
}

func (s *Store) AddPatient(id, userID, name string) *models.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Patient{UserID: userID, Name: name, Email: userID + "@mail.test"}
	p.ID = id
	s.patients[id] = p
	return p
}

// FailSaves makes SaveAppointment return err until called again with nil.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = err
}

// OverrideCount is the number of stored date-specific availability rows.
func (s *Store) OverrideCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.availability)
}

func availabilityKey(doctorID string, day time.Time) string {
	return doctorID + "|" + day.Format("2006-01-02")
}

func (s *Store) CreateAppointment(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	cp.Doctor, cp.Patient = nil, nil
	s.appointments[a.ID] = &cp
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, scheduler.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// LockAppointment is GetAppointment; WithinTx already serializes callers.
func (s *Store) LockAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	return s.GetAppointment(ctx, id)
}

func (s *Store) SaveAppointment(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return s.failSave
	}
	if _, ok := s.appointments[a.ID]; !ok {
		return scheduler.ErrNotFound
	}
	cp := *a
	cp.Doctor, cp.Patient = nil, nil
	s.appointments[a.ID] = &cp
	return nil
}

func (s *Store) FindOverlapping(_ context.Context, q scheduler.OverlapQuery) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appointments {
		if a.ID == q.ExcludeID {
			continue
		}
		switch q.Party {
		case scheduler.PartyDoctor:
			if a.DoctorID != q.PartyID {
				continue
			}
		case scheduler.PartyPatient:
			if a.PatientID != q.PartyID {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown party %q", q.Party)
		}
		if !hasStatus(q.Statuses, a.Status) {
			continue
		}
		if a.Overlaps(q.Start, q.End) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAppointments(_ context.Context, f scheduler.AppointmentFilter) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if f.DoctorID != "" && a.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		if !f.StartFrom.IsZero() && a.StartTime.Before(f.StartFrom) {
			continue
		}
		if !f.StartTo.IsZero() && !a.StartTime.Before(f.StartTo) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) DateAvailability(_ context.Context, doctorID string, day time.Time) (*models.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.availability[availabilityKey(doctorID, day)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *Store) UpsertAvailability(_ context.Context, a *models.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := availabilityKey(a.DoctorID, a.Date)
	if existing, ok := s.availability[key]; ok {
		a.ID = existing.ID
	} else if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	s.availability[key] = &cp
	return nil
}

func (s *Store) GetDoctor(_ context.Context, id string) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, scheduler.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) GetDoctorByUserID(_ context.Context, userID string) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.doctors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, scheduler.ErrNotFound
}

func (s *Store) SaveDoctor(_ context.Context, d *models.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.doctors[d.ID] = &cp
	return nil
}

func (s *Store) GetPatient(_ context.Context, id string) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, scheduler.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetPatientByUserID(_ context.Context, userID string) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patients {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, scheduler.ErrNotFound
}

func (s *Store) HasConsultation(_ context.Context, appointmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.consultations {
		if c.AppointmentID == appointmentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CreateConsultation(_ context.Context, c *models.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	s.consultations[c.ID] = &cp
	return nil
}

func (s *Store) WithinTx(_ context.Context, _, _ string, fn func(tx scheduler.Store) error) error {
	s.tx.Lock()
	defer s.tx.Unlock()
	return fn(s)
}

func hasStatus(list []models.AppointmentStatus, s models.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Notifier captures messages and can be told to fail.
type Notifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	Err  error
}

func (n *Notifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.Err
}

func (n *Notifier) Sent() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

func (n *Notifier) To(userID string) []notify.Message {
	var out []notify.Message
	for _, m := range n.Sent() {
		if m.RecipientUserID == userID {
			out = append(out, m)
		}
	}
	return out
}
