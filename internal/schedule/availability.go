package schedule

import (
	"fmt"
	"time"

	"tutoring-service/internal/models"
)

// Fixed hourly slot grid, 08:00 through 19:00 inclusive.
const (
	gridStartHour = 8
	gridEndHour   = 19
)

// SlotCapacity is fixed at 1 under the global-exclusivity policy.
const SlotCapacity = 1

type TimeSlot struct {
	Time        string
	Available   bool
	BookedCount int
	Capacity    int
}

// GridTimes returns the slot grid as "HH:MM" values.
func GridTimes() []string {
	times := make([]string, 0, gridEndHour-gridStartHour+1)
	for h := gridStartHour; h <= gridEndHour; h++ {
		times = append(times, fmt.Sprintf("%02d:00", h))
	}

	return times
}

// SlotsForDate annotates every grid slot for the selected date. Results are
// valid only for the snapshot they were computed from and must be recomputed
// on every refresh.
func SlotsForDate(snap Snapshot, date time.Time) []TimeSlot {
	times := GridTimes()

	slots := make([]TimeSlot, 0, len(times))
	for _, tod := range times {
		slots = append(slots, TimeSlot{
			Time:        tod,
			Available:   IsTimeSlotAvailable(snap, date, tod, Candidate{LessonType: models.LessonSingle}),
			BookedCount: snap.ActiveAt(date, tod),
			Capacity:    SlotCapacity,
		})
	}

	return slots
}
