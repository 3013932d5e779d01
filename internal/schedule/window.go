package schedule

import (
	"errors"
	"time"
)

const (
	// MinLeadTime is the floor before a lesson can start: single bookings and
	// the first lesson of a recurring series must be at least this far away.
	MinLeadTime = 24 * time.Hour

	// MaxLeadDays caps how far ahead a single lesson may be booked.
	MaxLeadDays = 7
)

var (
	ErrTooFarAhead        = errors.New("lesson is too far in advance")
	ErrTooSoon            = errors.New("lesson is too close to start time")
	ErrFirstLessonTooSoon = errors.New("first lesson is too close to start time")
	ErrDateNotSelectable  = errors.New("date is not selectable")
)

// IsDateSelectable reports whether a calendar day can be booked at all:
// Monday through Saturday, today or later (day granularity).
func IsDateSelectable(date, now time.Time) bool {
	wd := date.Weekday()
	if wd < time.Monday || wd > time.Saturday {
		return false
	}

	return !truncateToDate(date, now.Location()).Before(truncateToDate(now, now.Location()))
}

// ValidateSingleLessonWindow enforces the single-lesson booking window:
// no more than MaxLeadDays ahead (day granularity) and no less than
// MinLeadTime before the lesson starts. The first failing check names the
// reason. Recurring series are validated by ValidateSeries instead, which
// carries only the 24-hour floor.
func ValidateSingleLessonWindow(date time.Time, tod string, now time.Time) error {
	loc := now.Location()
	daysDifference := int(truncateToDate(date, loc).Sub(truncateToDate(now, loc)).Hours() / 24)
	if daysDifference > MaxLeadDays {
		return ErrTooFarAhead
	}

	if LessonAt(date, tod).Sub(now) < MinLeadTime {
		return ErrTooSoon
	}

	return nil
}
