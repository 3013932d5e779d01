package schedule

import "time"

// NormalizeTime reduces a time-of-day string to "HH:MM". Persisted values may
// carry second-level precision ("16:00:00"), which must never affect slot
// comparison.
func NormalizeTime(tod string) string {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, tod); err == nil {
			return t.Format("15:04")
		}
	}

	return tod
}

// LessonAt combines a calendar date with a time-of-day into an absolute
// timestamp in the date's location.
func LessonAt(date time.Time, tod string) time.Time {
	t, err := time.Parse("15:04", NormalizeTime(tod))
	if err != nil {
		return truncateToDate(date, date.Location())
	}

	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// WeekdayName returns the weekday name stored redundantly on bookings
// ("Monday" .. "Sunday").
func WeekdayName(date time.Time) string {
	return date.Weekday().String()
}

func truncateToDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}
