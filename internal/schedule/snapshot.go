package schedule

import (
	"time"

	"tutoring-service/internal/models"
)

// Snapshot is an immutable view of every non-deleted booking, ordered
// newest-first. It is the single input every check in this package reasons
// about; callers replace it wholesale on refresh, never patch it in place.
type Snapshot struct {
	Bookings []models.Booking
	LoadedAt time.Time
}

func NewSnapshot(bookings []models.Booking, loadedAt time.Time) Snapshot {
	return Snapshot{Bookings: bookings, LoadedAt: loadedAt}
}

// ActiveAt counts active bookings at the exact date and normalized time.
func (s Snapshot) ActiveAt(date time.Time, tod string) int {
	want := NormalizeTime(tod)

	count := 0
	for i := range s.Bookings {
		b := &s.Bookings[i]
		if !b.IsActive() {
			continue
		}
		if !sameDate(b.LessonDate, date) {
			continue
		}
		if NormalizeTime(b.LessonTime) != want {
			continue
		}
		count++
	}

	return count
}
