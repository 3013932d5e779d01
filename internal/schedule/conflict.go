package schedule

import (
	"fmt"
	"time"

	"tutoring-service/internal/models"
	"tutoring-service/pkg/response"
)

// Candidate describes the booking being checked against the snapshot.
type Candidate struct {
	ServiceType models.ServiceType
	LessonType  models.LessonType
}

// ConflictError reports the first date of a candidate booking or series that
// collides with an existing active booking.
type ConflictError struct {
	Date time.Time
	Time string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot on %s at %s is already booked", e.Date.Format("2006-01-02"), e.Time)
}

func (e *ConflictError) Is(target error) bool { return target == response.ErrSlotNotAvailable }

// IsTimeSlotAvailable decides whether an active booking already occupies the
// given date and time. Exclusivity is global: any active booking blocks the
// slot for every requester and every service type, not just same-service
// conflicts.
//
// When the candidate is itself recurring, an active recurring booking at the
// same weekday and time blocks it too, even when its stored date falls on a
// different week of the series.
func IsTimeSlotAvailable(snap Snapshot, date time.Time, tod string, cand Candidate) bool {
	want := NormalizeTime(tod)

	for i := range snap.Bookings {
		b := &snap.Bookings[i]
		if !b.IsActive() {
			continue
		}
		if NormalizeTime(b.LessonTime) != want {
			continue
		}

		if sameDate(b.LessonDate, date) {
			return false
		}

		if cand.LessonType == models.LessonRecurring &&
			b.LessonType == models.LessonRecurring &&
			b.LessonDate.Weekday() == date.Weekday() {
			return false
		}
	}

	return true
}
