package schedule

import (
	"time"

	"tutoring-service/internal/models"
)

// PaymentWindow is the interval before a lesson's start during which the
// automatic refund-on-cancellation policy applies.
const PaymentWindow = 24 * time.Hour

type RefundDecision struct {
	WithinPaymentWindow bool
	ShouldAutoRefund    bool
}

// EvaluateRefund decides whether deleting the booking at `now` must trigger an
// automatic refund: inside [lesson start − 24h, lesson start), paid, and not
// already cancelled.
func EvaluateRefund(b models.Booking, now time.Time) RefundDecision {
	lessonAt := LessonAt(b.LessonDate, b.LessonTime)

	within := !now.Before(lessonAt.Add(-PaymentWindow)) && now.Before(lessonAt)
	paid := b.PaymentStatus == models.PaymentPaid || b.PaymentStatus == models.PaymentCompleted

	return RefundDecision{
		WithinPaymentWindow: within,
		ShouldAutoRefund:    within && paid && b.Status != models.BookingCancelled,
	}
}
