package scheduler

import (
	"context"
	"time"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// ConflictDetector looks for active appointments overlapping a requested
// interval on a doctor's or a patient's calendar.
type ConflictDetector struct {
	statuses []models.AppointmentStatus
}

// NewConflictDetector counts the given statuses as occupying a slot; with none
// it uses models.ActiveStatuses.
func NewConflictDetector(statuses ...models.AppointmentStatus) ConflictDetector {
	if len(statuses) == 0 {
		statuses = models.ActiveStatuses()
	}
	return ConflictDetector{statuses: statuses}
}

// HasConflict reports whether party id already holds an active appointment
// overlapping [start, end). excludeID drops one appointment from consideration
// so a rescheduled appointment does not collide with itself.
func (d ConflictDetector) HasConflict(ctx context.Context, repo AppointmentRepository, party Party, id string, start, end time.Time, excludeID string) (bool, error) {
	found, err := repo.FindOverlapping(ctx, OverlapQuery{
		Party:     party,
		PartyID:   id,
		Start:     start,
		End:       end,
		Statuses:  d.statuses,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, internal("check "+string(party)+" conflicts", err)
	}
	return found != nil, nil
}
