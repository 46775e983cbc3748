package utils

import (
	"time"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// FreeWindows returns the windows of the day that no busy appointment overlaps.
func FreeWindows(slots []models.TimeSlot, date time.Time, busy []models.Appointment) []Window {
	var free []Window
	for _, w := range MaterializeWindows(slots, date) {
		taken := false
		for i := range busy {
			if busy[i].Overlaps(w.Start, w.End) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, w)
		}
	}
	return free
}
