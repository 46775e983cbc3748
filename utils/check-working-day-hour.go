package utils

import (
	"time"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// Window is a slot placed on a calendar day as a concrete [Start, End) interval.
type Window struct {
	Slot  models.TimeSlot
	Start time.Time
	End   time.Time
}

// MaterializeWindows places each slot on the calendar day of date. Slots whose
// from or to does not parse are skipped.
func MaterializeWindows(slots []models.TimeSlot, date time.Time) []Window {
	windows := make([]Window, 0, len(slots))
	for _, slot := range slots {
		from, ok := ParseClock(slot.From)
		if !ok {
			continue
		}
		to, ok := ParseClock(slot.To)
		if !ok {
			continue
		}
		windows = append(windows, Window{Slot: slot, Start: from.On(date), End: to.On(date)})
	}
	return windows
}

// IsWithinAnyWindow reports whether [start, end) lies entirely inside a single
// slot on start's calendar day. A request is never split across two adjacent
// slots. Callers bypass the check when no slots are published.
func IsWithinAnyWindow(start, end time.Time, slots []models.TimeSlot) bool {
	for _, w := range MaterializeWindows(slots, start) {
		if !start.Before(w.Start) && !end.After(w.End) {
			return true
		}
	}
	return false
}
