package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/meinhoongagan/telehealth-scheduler/metrics"
	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/notify"
	"github.com/meinhoongagan/telehealth-scheduler/scheduler"
)

// ReminderCache remembers reminders that were already sent.
type ReminderCache interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReminderStore is the slice of scheduler.Store the reminder sweep reads.
type ReminderStore interface {
	ListAppointments(ctx context.Context, f scheduler.AppointmentFilter) ([]models.Appointment, error)
	GetDoctor(ctx context.Context, id string) (*models.Doctor, error)
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
}

type ReminderOptions struct {
	Lead    time.Duration
	TTL     time.Duration
	Now     func() time.Time
	Logger  zerolog.Logger
	Metrics *metrics.SchedulingMetrics
}

// ReminderJob tells both parties shortly before a confirmed appointment
// starts.
type ReminderJob struct {
	store    ReminderStore
	notifier notify.Notifier
	cache    ReminderCache
	lead     time.Duration
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
	metrics  *metrics.SchedulingMetrics
}

func NewReminderJob(store ReminderStore, notifier notify.Notifier, cache ReminderCache, opts ReminderOptions) *ReminderJob {
	if opts.Lead <= 0 {
		opts.Lead = 5 * time.Minute
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cache == nil {
		cache = NewMemoryCache(opts.Now)
	}
	return &ReminderJob{
		store:    store,
		notifier: notifier,
		cache:    cache,
		lead:     opts.Lead,
		ttl:      opts.TTL,
		now:      opts.Now,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Start runs Sweep on the given cron expression. Callers stop it with the
// returned *cron.Cron.
func (j *ReminderJob) Start(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := j.Sweep(context.Background()); err != nil {
			j.log.Error().Err(err).Msg("reminder sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron: add reminder job: %w", err)
	}
	c.Start()
	j.log.Info().Str("schedule", schedule).Dur("lead", j.lead).Msg("reminder job started")
	return c, nil
}

// Sweep sends reminders for confirmed appointments starting in
// [now+lead, now+lead+1m) and returns how many appointments were reminded.
func (j *ReminderJob) Sweep(ctx context.Context) (int, error) {
	from := j.now().Add(j.lead)
	upcoming, err := j.store.ListAppointments(ctx, scheduler.AppointmentFilter{
		Statuses:  []models.AppointmentStatus{models.StatusConfirmed},
		StartFrom: from,
		StartTo:   from.Add(time.Minute),
	})
	if err != nil {
		return 0, fmt.Errorf("cron: list upcoming appointments: %w", err)
	}

	sent := 0
	for i := range upcoming {
		appt := &upcoming[i]
		key := fmt.Sprintf("reminder:%s:%s", appt.ID, j.lead)
		first, err := j.cache.MarkOnce(ctx, key, j.ttl)
		if err != nil {
			j.log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("reminder cache unavailable")
			continue
		}
		if !first {
			continue
		}
		if err := j.remind(ctx, appt); err != nil {
			j.log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("reminder skipped")
			continue
		}
		sent++
		j.metrics.ObserveReminder()
	}

	if sent > 0 {
		j.log.Info().Int("count", sent).Msg("consultation reminders sent")
	}
	return sent, nil
}

func (j *ReminderJob) remind(ctx context.Context, appt *models.Appointment) error {
	doctor := appt.Doctor
	if doctor == nil {
		d, err := j.store.GetDoctor(ctx, appt.DoctorID)
		if err != nil {
			return fmt.Errorf("load doctor: %w", err)
		}
		doctor = d
	}
	patient := appt.Patient
	if patient == nil {
		p, err := j.store.GetPatient(ctx, appt.PatientID)
		if err != nil {
			return fmt.Errorf("load patient: %w", err)
		}
		patient = p
	}

	minutes := int(j.lead / time.Minute)
	payload := map[string]any{
		"startTime": appt.StartTime,
		"endTime":   appt.EndTime,
	}
	// Delivery failures are logged by the dispatcher.
	_ = j.notifier.Notify(ctx, notify.Message{
		Kind:            notify.KindReminder,
		RecipientUserID: patient.UserID,
		RecipientEmail:  patient.Email,
		Subject:         "Upcoming consultation",
		Text:            fmt.Sprintf("Your consultation with Dr. %s starts in %d minutes", doctor.Name, minutes),
		AppointmentID:   appt.ID,
		Payload:         payload,
	})
	_ = j.notifier.Notify(ctx, notify.Message{
		Kind:            notify.KindReminder,
		RecipientUserID: doctor.UserID,
		RecipientEmail:  doctor.Email,
		Subject:         "Upcoming consultation",
		Text:            fmt.Sprintf("Your consultation with %s starts in %d minutes", patient.Name, minutes),
		AppointmentID:   appt.ID,
		Payload:         payload,
	})
	return nil
}

// MemoryCache is the single-process ReminderCache used when Redis is not
// configured.
type MemoryCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{seen: make(map[string]time.Time), now: now}
}

func (c *MemoryCache) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, expires := range c.seen {
		if !now.Before(expires) {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[key]; ok {
		return false, nil
	}
	c.seen[key] = now.Add(ttl)
	return true, nil
}
