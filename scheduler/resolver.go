package scheduler

import (
	"context"
	"time"

	"github.com/meinhoongagan/telehealth-scheduler/models"
	"github.com/meinhoongagan/telehealth-scheduler/utils"
)

// AvailabilityResolver picks the windows that apply to a doctor on a day:
// a non-empty date-specific override wins, otherwise the default schedule.
type AvailabilityResolver struct {
	repo AvailabilityRepository
	dir  Directory
	loc  *time.Location
}

func NewAvailabilityResolver(repo AvailabilityRepository, dir Directory, loc *time.Location) *AvailabilityResolver {
	if loc == nil {
		loc = time.Local
	}
	return &AvailabilityResolver{repo: repo, dir: dir, loc: loc}
}

// Resolve loads the doctor and returns the windows for date. An empty result
// means no availability was published, which callers treat as unrestricted.
func (r *AvailabilityResolver) Resolve(ctx context.Context, doctorID string, date time.Time) ([]models.TimeSlot, error) {
	doctor, err := r.dir.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, lookup(err, "Doctor not found")
	}
	return r.ForDoctor(ctx, doctor, date)
}

func (r *AvailabilityResolver) ForDoctor(ctx context.Context, doctor *models.Doctor, date time.Time) ([]models.TimeSlot, error) {
	day := utils.StartOfDay(date, r.loc)

	override, err := r.repo.DateAvailability(ctx, doctor.ID, day)
	if err != nil {
		return nil, internal("load date availability", err)
	}
	if override != nil && len(override.Slots) > 0 {
		return override.Slots, nil
	}
	return doctor.Availability, nil
}
