package models

import "time"

type ServiceType string

const (
	ServiceIndividual ServiceType = "individual"
	ServiceGroup      ServiceType = "group"
)

type LessonType string

const (
	LessonSingle    LessonType = "single"
	LessonRecurring LessonType = "recurring"
)

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingPending   BookingStatus = "pending"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

const DefaultCurrency = "gbp"

// Per-lesson prices in minor currency units.
var lessonPrices = map[ServiceType]int64{
	ServiceIndividual: 3500,
	ServiceGroup:      2000,
}

func LessonPrice(service ServiceType) (int64, bool) {
	price, ok := lessonPrices[service]
	return price, ok
}

func ValidServiceType(s string) bool {
	_, ok := lessonPrices[ServiceType(s)]
	return ok
}

type Booking struct {
	ID              string        `db:"id"`
	UserID          string        `db:"user_id"`
	StudentEmail    string        `db:"student_email"`
	LessonDate      time.Time     `db:"lesson_date"`
	LessonTime      string        `db:"lesson_time"` // "HH:MM", may carry ":SS" when read back
	LessonDay       string        `db:"lesson_day"`
	ServiceType     ServiceType   `db:"service_type"`
	LessonType      LessonType    `db:"lesson_type"`
	Status          BookingStatus `db:"status"`
	PaymentStatus   PaymentStatus `db:"payment_status"`
	Amount          int64         `db:"amount"`
	Currency        string        `db:"currency"`
	PaymentIntentID string        `db:"payment_intent_id"`
	RequestID       string        `db:"request_id"`

	// Set only when LessonType is recurring.
	RecurringSeriesID      *string `db:"recurring_series_id"`
	RecurringSessionNumber *int    `db:"recurring_session_number"`
	RecurringSessionTotal  *int    `db:"recurring_session_total"`

	CreatedAt time.Time  `db:"created_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

// IsActive reports whether the booking still blocks its slot.
func (b *Booking) IsActive() bool {
	return b.Status != BookingCancelled && b.PaymentStatus != PaymentRefunded
}
