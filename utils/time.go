package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a parsed time of day.
type Clock struct {
	Hour   int
	Minute int
}

var (
	clock24 = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	clock12 = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(am|pm)$`)
)

// ParseClock parses "14:00", "9:30", "2:00 PM" and "2:00pm" style strings.
// Hours are not range checked; values past 23 roll over when placed on a date.
// It returns false when the string matches neither grammar.
func ParseClock(raw string) (Clock, bool) {
	c, _, ok := parseClock(raw)
	return c, ok
}

// ValidClock is ParseClock for input that is about to be stored: minutes must
// be 0-59 and hours 0-23, or 1-12 when an am/pm suffix is given.
func ValidClock(raw string) (Clock, error) {
	c, twelveHour, ok := parseClock(raw)
	if !ok {
		return Clock{}, fmt.Errorf("%q is not a time of day", raw)
	}
	if c.Minute > 59 {
		return Clock{}, fmt.Errorf("%q: minute out of range", raw)
	}
	if twelveHour >= 0 {
		if twelveHour < 1 || twelveHour > 12 {
			return Clock{}, fmt.Errorf("%q: hour out of range for am/pm", raw)
		}
	} else if c.Hour > 23 {
		return Clock{}, fmt.Errorf("%q: hour out of range", raw)
	}
	return c, nil
}

// parseClock also returns the hour as written when the 12-hour grammar
// matched, and -1 otherwise.
func parseClock(raw string) (Clock, int, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))

	if m := clock24.FindStringSubmatch(cleaned); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		return Clock{Hour: h, Minute: minute}, -1, true
	}

	if m := clock12.FindStringSubmatch(cleaned); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		written := h
		switch {
		case m[3] == "pm" && h != 12:
			h += 12
		case m[3] == "am" && h == 12:
			h = 0
		}
		return Clock{Hour: h, Minute: minute}, written, true
	}

	return Clock{}, -1, false
}

// On places the clock on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, date.Location())
}

// StartOfDay strips the time of day from t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate accepts "2006-01-02" or an RFC3339 timestamp and returns the
// start of that day in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t, loc), nil
}
