package schedule

import (
	"testing"
	"time"

	"tutoring-service/internal/models"
)

func TestEvaluateRefund(t *testing.T) {
	lessonDate := date(2025, time.March, 10)
	const lessonTime = "14:00"

	lessonAt := time.Date(2025, time.March, 10, 14, 0, 0, 0, time.Local)

	base := activeBooking(lessonDate, lessonTime)

	tests := []struct {
		name       string
		now        time.Time
		mutate     func(b *models.Booking)
		wantWithin bool
		wantRefund bool
	}{
		{
			name:       "inside window, paid",
			now:        lessonAt.Add(-23*time.Hour - 59*time.Minute),
			wantWithin: true,
			wantRefund: true,
		},
		{
			name:       "exactly at window open",
			now:        lessonAt.Add(-PaymentWindow),
			wantWithin: true,
			wantRefund: true,
		},
		{
			name:       "before window opens",
			now:        lessonAt.Add(-25 * time.Hour),
			wantWithin: false,
			wantRefund: false,
		},
		{
			name:       "lesson already started",
			now:        lessonAt,
			wantWithin: false,
			wantRefund: false,
		},
		{
			name:       "inside window, completed payment",
			now:        lessonAt.Add(-time.Hour),
			mutate:     func(b *models.Booking) { b.PaymentStatus = models.PaymentCompleted },
			wantWithin: true,
			wantRefund: true,
		},
		{
			name:       "inside window, unpaid",
			now:        lessonAt.Add(-time.Hour),
			mutate:     func(b *models.Booking) { b.PaymentStatus = models.PaymentPending },
			wantWithin: true,
			wantRefund: false,
		},
		{
			name:       "inside window, already cancelled",
			now:        lessonAt.Add(-time.Hour),
			mutate:     func(b *models.Booking) { b.Status = models.BookingCancelled },
			wantWithin: true,
			wantRefund: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			if tt.mutate != nil {
				tt.mutate(&b)
			}

			got := EvaluateRefund(b, tt.now)
			if got.WithinPaymentWindow != tt.wantWithin {
				t.Errorf("WithinPaymentWindow = %v, want %v", got.WithinPaymentWindow, tt.wantWithin)
			}
			if got.ShouldAutoRefund != tt.wantRefund {
				t.Errorf("ShouldAutoRefund = %v, want %v", got.ShouldAutoRefund, tt.wantRefund)
			}
		})
	}
}
