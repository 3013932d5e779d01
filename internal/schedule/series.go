package schedule

import (
	"errors"
	"time"

	"tutoring-service/internal/models"
)

// SeriesInterval is the step between lessons of a recurring series.
const SeriesInterval = 7

var ErrEmptySeries = errors.New("series has no dates before the program end date")

// GenerateSeriesDates expands a start date into the full ordered list of
// weekly lesson dates, inclusive of start, up to and including the program
// boundary. Purely a function of its inputs.
func GenerateSeriesDates(start, boundary time.Time) []time.Time {
	loc := start.Location()
	end := truncateToDate(boundary, loc)

	var dates []time.Time
	for d := truncateToDate(start, loc); !d.After(end); d = d.AddDate(0, 0, SeriesInterval) {
		dates = append(dates, d)
	}

	return dates
}

// ValidateSeries checks a generated series against the snapshot before any
// commit. The first lesson must clear the 24-hour floor; if it does not, no
// per-date scan is performed. Otherwise every date is checked in order with
// the recurring candidate context, and the first conflict fails the whole
// series — callers must not salvage earlier non-conflicting dates.
//
// This is an optimistic check over a single snapshot read; commit-time
// exclusivity is enforced by the store.
func ValidateSeries(snap Snapshot, dates []time.Time, tod string, now time.Time, cand Candidate) error {
	if len(dates) == 0 {
		return ErrEmptySeries
	}

	if LessonAt(dates[0], tod).Sub(now) < MinLeadTime {
		return ErrFirstLessonTooSoon
	}

	cand.LessonType = models.LessonRecurring
	for _, date := range dates {
		if !IsTimeSlotAvailable(snap, date, tod, cand) {
			return &ConflictError{Date: date, Time: NormalizeTime(tod)}
		}
	}

	return nil
}
