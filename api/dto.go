package api

import "time"

// BookingDetails mirrors the booking_details block of a creation request.
type BookingDetails struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	Day          string `json:"day"`
	Service      string `json:"service"`
	LessonType   string `json:"lesson_type"`
	StudentEmail string `json:"student_email"`

	IsRecurring      bool     `json:"is_recurring,omitempty"`
	RecurringDates   []string `json:"recurring_dates,omitempty"`
	TotalLessons     int      `json:"total_lessons,omitempty"`
	RecurringEndDate string   `json:"recurring_end_date,omitempty"`
}

type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type CreateBookingRequest struct {
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	ProductName    string         `json:"product_name"`
	BookingDetails BookingDetails `json:"booking_details"`
	UserInfo       UserInfo       `json:"user_info"`
	RequestID      string         `json:"request_id"`
}

// CreateBookingResponse is one of two shapes: a payment handle for a single
// lesson (client_secret set), or a recurring-series confirmation
// (bookings_created set).
type CreateBookingResponse struct {
	ClientSecret    string   `json:"client_secret,omitempty"`
	PaymentIntentID string   `json:"payment_intent_id,omitempty"`
	RecurringSeries bool     `json:"recurring_series,omitempty"`
	AmountPerLesson int64    `json:"amount_per_lesson,omitempty"`
	RecurringDates  []string `json:"recurring_dates,omitempty"`
	Success         bool     `json:"success,omitempty"`
	BookingsCreated int      `json:"bookings_created,omitempty"`
}

type SlotResponse struct {
	Time        string `json:"time"`
	Available   bool   `json:"available"`
	BookedCount int    `json:"booked_count"`
	Capacity    int    `json:"capacity"`
}

type AvailabilityResponse struct {
	Date       string         `json:"date"`
	Selectable bool           `json:"selectable"`
	Slots      []SlotResponse `json:"slots"`
}

type BookingResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Day           string    `json:"day"`
	Service       string    `json:"service"`
	LessonType    string    `json:"lesson_type"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`

	RecurringSeriesID      string `json:"recurring_series_id,omitempty"`
	RecurringSessionNumber int    `json:"recurring_session_number,omitempty"`
	RecurringSessionTotal  int    `json:"recurring_session_total,omitempty"`
}

type SeriesPreviewRequest struct {
	StartDate string `json:"start_date"`
	Service   string `json:"service"`
}

type SeriesPreviewResponse struct {
	Dates           []string `json:"dates"`
	TotalLessons    int      `json:"total_lessons"`
	AmountPerLesson int64    `json:"amount_per_lesson"`
	TotalAmount     int64    `json:"total_amount"`
	Currency        string   `json:"currency"`
	EndDate         string   `json:"end_date"`
}

type AdminDeleteResponse struct {
	Success                  bool   `json:"success"`
	Message                  string `json:"message"`
	WithinPaymentWindow      bool   `json:"within_payment_window"`
	AutomaticRefundProcessed bool   `json:"automatic_refund_processed"`
	RefundID                 string `json:"refund_id,omitempty"`
}
