package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tutoring-service/api"
	"tutoring-service/internal/models"
	"tutoring-service/internal/payment"
	"tutoring-service/pkg/response"
)

var fixedNow = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.Local) // Monday

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

type stubStore struct {
	bookings  []models.Booking
	byRequest map[string]*models.Booking

	created []*models.Booking
	series  [][]models.Booking

	cancelled []string
	refunded  []string

	createErr error
	cancelErr error
}

func (s *stubStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return s.bookings, nil
}

func (s *stubStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			b := s.bookings[i]
			return &b, nil
		}
	}

	return nil, response.ErrNotFound
}

func (s *stubStore) GetBookingByRequestID(ctx context.Context, requestID string) (*models.Booking, error) {
	if b, ok := s.byRequest[requestID]; ok {
		return b, nil
	}

	return nil, response.ErrNotFound
}

func (s *stubStore) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var result []models.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			result = append(result, b)
		}
	}

	return result, nil
}

func (s *stubStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, b)
	s.bookings = append(s.bookings, *b)

	return nil
}

func (s *stubStore) CreateSeries(ctx context.Context, bookings []models.Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.series = append(s.series, bookings)
	s.bookings = append(s.bookings, bookings...)

	return nil
}

func (s *stubStore) CancelAndSoftDelete(ctx context.Context, id string, now time.Time) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)

	return nil
}

func (s *stubStore) MarkRefunded(ctx context.Context, id string) error {
	s.refunded = append(s.refunded, id)
	return nil
}

type stubLocker struct {
	allow    bool
	lockErr  error
	locked   []string
	unlocked []string
}

func (l *stubLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.lockErr != nil {
		return false, l.lockErr
	}
	l.locked = append(l.locked, key)

	return l.allow, nil
}

func (l *stubLocker) Unlock(ctx context.Context, key string) error {
	l.unlocked = append(l.unlocked, key)
	return nil
}

type stubPayments struct {
	intents   []payment.CreateIntentParams
	createErr error

	refunds   []string
	refundID  string
	refundErr error
}

func (p *stubPayments) CreateIntent(ctx context.Context, params payment.CreateIntentParams) (*payment.Intent, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.intents = append(p.intents, params)

	return &payment.Intent{ID: "pi_test", ClientSecret: "cs_test"}, nil
}

func (p *stubPayments) GetIntent(ctx context.Context, id string) (*payment.Intent, error) {
	return &payment.Intent{ID: id, ClientSecret: "cs_" + id}, nil
}

func (p *stubPayments) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.refunds = append(p.refunds, paymentIntentID)

	return p.refundID, nil
}

type stubPublisher struct {
	changes int
}

func (p *stubPublisher) BookingsChanged(ctx context.Context) error {
	p.changes++
	return nil
}

func newTestService(store *stubStore, payments *stubPayments) (*Service, *stubLocker, *stubPublisher) {
	locker := &stubLocker{allow: true}
	pub := &stubPublisher{}

	svc := NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store, locker, payments, pub,
		date(2025, time.April, 7),
	)
	svc.clock = func() time.Time { return fixedNow }

	return svc, locker, pub
}

func singleRequest() *api.CreateBookingRequest {
	return &api.CreateBookingRequest{
		Currency:    "gbp",
		ProductName: "Individual Tutoring",
		RequestID:   "req-1",
		UserInfo:    api.UserInfo{ID: "user-1", Email: "parent@example.com"},
		BookingDetails: api.BookingDetails{
			Date:         "2025-03-10",
			Time:         "14:00",
			Service:      "individual",
			LessonType:   "single",
			StudentEmail: "student@example.com",
		},
	}
}

func recurringRequest() *api.CreateBookingRequest {
	req := singleRequest()
	req.ProductName = "Weekly Tutoring"
	req.BookingDetails.LessonType = "recurring"

	return req
}

func occupied(id string, day time.Time, tod string) models.Booking {
	return models.Booking{
		ID:              id,
		UserID:          "other-user",
		LessonDate:      day,
		LessonTime:      tod,
		LessonDay:       day.Weekday().String(),
		ServiceType:     models.ServiceGroup,
		LessonType:      models.LessonSingle,
		Status:          models.BookingScheduled,
		PaymentStatus:   models.PaymentPaid,
		Amount:          2000,
		Currency:        "gbp",
		PaymentIntentID: "pi_other",
	}
}

func TestConfirmBooking_SingleSuccess(t *testing.T) {
	store := &stubStore{}
	payments := &stubPayments{}
	svc, locker, pub := newTestService(store, payments)

	resp, err := svc.ConfirmBooking(context.Background(), singleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.ClientSecret != "cs_test" || resp.PaymentIntentID != "pi_test" {
		t.Errorf("got payment handle %q/%q, want cs_test/pi_test", resp.ClientSecret, resp.PaymentIntentID)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d bookings, want 1", len(store.created))
	}
	b := store.created[0]
	if b.Status != models.BookingPending || b.PaymentStatus != models.PaymentPending {
		t.Errorf("booking stored as %s/%s, want pending/pending", b.Status, b.PaymentStatus)
	}
	if b.LessonDay != "Monday" {
		t.Errorf("lesson day = %q, want Monday", b.LessonDay)
	}
	if b.Amount != 3500 {
		t.Errorf("amount = %d, want 3500", b.Amount)
	}

	if len(payments.intents) != 1 {
		t.Fatalf("created %d intents, want 1", len(payments.intents))
	}
	if payments.intents[0].IdempotencyKey != "req-1" {
		t.Errorf("idempotency key = %q, want req-1", payments.intents[0].IdempotencyKey)
	}

	if len(locker.locked) != 1 || len(locker.unlocked) != 1 {
		t.Errorf("lock/unlock calls = %d/%d, want 1/1", len(locker.locked), len(locker.unlocked))
	}
	if pub.changes != 1 {
		t.Errorf("published %d changes, want 1", pub.changes)
	}
}

func TestConfirmBooking_RecurringSuccess(t *testing.T) {
	store := &stubStore{}
	payments := &stubPayments{}
	svc, _, _ := newTestService(store, payments)

	resp, err := svc.ConfirmBooking(context.Background(), recurringRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || !resp.RecurringSeries || resp.BookingsCreated != 5 {
		t.Errorf("got success=%v recurring=%v created=%d, want true/true/5",
			resp.Success, resp.RecurringSeries, resp.BookingsCreated)
	}

	if len(store.series) != 1 {
		t.Fatalf("committed %d series, want 1", len(store.series))
	}
	series := store.series[0]
	if len(series) != 5 {
		t.Fatalf("series has %d bookings, want 5", len(series))
	}

	for i, b := range series {
		if b.Status != models.BookingScheduled || b.PaymentStatus != models.PaymentPaid {
			t.Errorf("session %d stored as %s/%s, want scheduled/paid", i+1, b.Status, b.PaymentStatus)
		}
		if b.RecurringSessionNumber == nil || *b.RecurringSessionNumber != i+1 {
			t.Errorf("session %d has wrong session number", i+1)
		}
		if b.RecurringSeriesID == nil || *b.RecurringSeriesID != *series[0].RecurringSeriesID {
			t.Errorf("session %d not attached to the series", i+1)
		}
	}

	if len(payments.intents) != 1 {
		t.Fatalf("created %d intents, want 1", len(payments.intents))
	}
	if payments.intents[0].Amount != 5*3500 {
		t.Errorf("intent amount = %d, want %d", payments.intents[0].Amount, 5*3500)
	}
}

func TestConfirmBooking_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *api.CreateBookingRequest)
	}{
		{"missing request_id", func(r *api.CreateBookingRequest) { r.RequestID = "" }},
		{"missing user id", func(r *api.CreateBookingRequest) { r.UserInfo.ID = "" }},
		{"missing student email", func(r *api.CreateBookingRequest) { r.BookingDetails.StudentEmail = "" }},
		{"unknown service", func(r *api.CreateBookingRequest) { r.BookingDetails.Service = "premium" }},
		{"bad lesson type", func(r *api.CreateBookingRequest) { r.BookingDetails.LessonType = "weekly" }},
		{"sunday", func(r *api.CreateBookingRequest) { r.BookingDetails.Date = "2025-03-09" }},
		{"past date", func(r *api.CreateBookingRequest) { r.BookingDetails.Date = "2025-03-01" }},
		{"too far ahead", func(r *api.CreateBookingRequest) { r.BookingDetails.Date = "2025-03-11" }},
		{"under 24 hours", func(r *api.CreateBookingRequest) {
			r.BookingDetails.Date = "2025-03-04"
			r.BookingDetails.Time = "10:00"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{}
			payments := &stubPayments{}
			svc, _, _ := newTestService(store, payments)

			req := singleRequest()
			tt.mutate(req)

			_, err := svc.ConfirmBooking(context.Background(), req)
			if !errors.Is(err, response.ErrValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
			if len(store.created) != 0 || len(payments.intents) != 0 {
				t.Error("nothing should be created on validation failure")
			}
		})
	}
}

func TestConfirmBooking_ConflictBeforeSubmission(t *testing.T) {
	store := &stubStore{
		bookings: []models.Booking{occupied("b-1", date(2025, time.March, 10), "14:00")},
	}
	payments := &stubPayments{}
	svc, _, _ := newTestService(store, payments)

	// Seed the snapshot so the first validation pass already sees the
	// conflicting booking.
	svc.RefreshSnapshot(context.Background())

	_, err := svc.ConfirmBooking(context.Background(), singleRequest())
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("got %v, want slot-not-available", err)
	}
	if len(store.created) != 0 || len(payments.intents) != 0 {
		t.Error("nothing should be created on conflict")
	}
}

func TestConfirmBooking_ConflictCaughtAtRevalidation(t *testing.T) {
	// The conflicting booking is only in the store, not in the (empty)
	// snapshot the first validation pass reads. The forced reload before
	// submission must catch it.
	store := &stubStore{
		bookings: []models.Booking{occupied("b-1", date(2025, time.March, 10), "14:00")},
	}
	payments := &stubPayments{}
	svc, _, _ := newTestService(store, payments)

	_, err := svc.ConfirmBooking(context.Background(), singleRequest())
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("got %v, want slot-not-available", err)
	}
	if len(payments.intents) != 0 {
		t.Error("no intent should be created once the reload sees the conflict")
	}
}

func TestConfirmBooking_RecurringConflictRejectsWholeSeries(t *testing.T) {
	store := &stubStore{
		bookings: []models.Booking{occupied("b-1", date(2025, time.March, 24), "14:00")},
	}
	payments := &stubPayments{}
	svc, _, _ := newTestService(store, payments)
	svc.RefreshSnapshot(context.Background())

	_, err := svc.ConfirmBooking(context.Background(), recurringRequest())
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("got %v, want slot-not-available", err)
	}
	if len(store.series) != 0 || len(store.created) != 0 {
		t.Error("a mid-series conflict must not create any booking")
	}
	if len(payments.intents) != 0 {
		t.Error("no payment should be taken for a rejected series")
	}
}

func TestConfirmBooking_InFlightGuard(t *testing.T) {
	store := &stubStore{}
	svc, _, _ := newTestService(store, &stubPayments{})

	svc.inflight["user-1"] = struct{}{}

	_, err := svc.ConfirmBooking(context.Background(), singleRequest())
	if !errors.Is(err, response.ErrConfirmationInFlight) {
		t.Fatalf("got %v, want confirmation-in-flight", err)
	}

	// A different user is unaffected.
	req := singleRequest()
	req.RequestID = "req-2"
	req.UserInfo.ID = "user-2"
	if _, err := svc.ConfirmBooking(context.Background(), req); err != nil {
		t.Fatalf("other user's confirmation failed: %v", err)
	}
}

func TestConfirmBooking_GuardClearsAfterFailure(t *testing.T) {
	store := &stubStore{
		bookings: []models.Booking{occupied("b-1", date(2025, time.March, 10), "14:00")},
	}
	svc, _, _ := newTestService(store, &stubPayments{})
	svc.RefreshSnapshot(context.Background())

	if _, err := svc.ConfirmBooking(context.Background(), singleRequest()); err == nil {
		t.Fatal("expected a conflict")
	}

	svc.inflightMu.Lock()
	_, held := svc.inflight["user-1"]
	svc.inflightMu.Unlock()
	if held {
		t.Error("in-flight guard must clear after a failed confirmation")
	}
}

func TestConfirmBooking_IdempotentReplay(t *testing.T) {
	total := 5
	store := &stubStore{
		byRequest: map[string]*models.Booking{
			"req-1": {LessonType: models.LessonSingle, PaymentIntentID: "pi_prior"},
			"req-2": {LessonType: models.LessonRecurring, RecurringSessionTotal: &total},
		},
	}
	payments := &stubPayments{}
	svc, _, _ := newTestService(store, payments)

	resp, err := svc.ConfirmBooking(context.Background(), singleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PaymentIntentID != "pi_prior" || resp.ClientSecret != "cs_pi_prior" {
		t.Errorf("replay returned %q/%q, want the prior intent's handle", resp.PaymentIntentID, resp.ClientSecret)
	}

	recurring := recurringRequest()
	recurring.RequestID = "req-2"
	resp, err = svc.ConfirmBooking(context.Background(), recurring)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.RecurringSeries || resp.BookingsCreated != 5 {
		t.Errorf("recurring replay returned created=%d, want 5", resp.BookingsCreated)
	}

	if len(store.created) != 0 || len(store.series) != 0 || len(payments.intents) != 0 {
		t.Error("a replayed request must not create anything")
	}
}

func TestConfirmBooking_SlotLockHeld(t *testing.T) {
	store := &stubStore{}
	svc, locker, _ := newTestService(store, &stubPayments{})
	locker.allow = false

	_, err := svc.ConfirmBooking(context.Background(), singleRequest())
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("got %v, want locked", err)
	}
	if len(store.created) != 0 {
		t.Error("nothing should be created while the slot lock is held elsewhere")
	}
}

func TestAdminDeleteBooking_AutoRefund(t *testing.T) {
	// Lesson tomorrow morning: inside the 24-hour payment window at fixedNow.
	b := occupied("b-1", date(2025, time.March, 4), "10:00")
	store := &stubStore{bookings: []models.Booking{b}}
	payments := &stubPayments{refundID: "re_1"}
	svc, _, pub := newTestService(store, payments)

	resp, err := svc.AdminDeleteBooking(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || !resp.WithinPaymentWindow || !resp.AutomaticRefundProcessed {
		t.Errorf("got success=%v within=%v refunded=%v, want all true",
			resp.Success, resp.WithinPaymentWindow, resp.AutomaticRefundProcessed)
	}
	if resp.RefundID != "re_1" {
		t.Errorf("refund id = %q, want re_1", resp.RefundID)
	}

	if len(payments.refunds) != 1 || payments.refunds[0] != "pi_other" {
		t.Errorf("refunded intents = %v, want [pi_other]", payments.refunds)
	}
	if len(store.refunded) != 1 || store.refunded[0] != "b-1" {
		t.Errorf("marked refunded = %v, want [b-1]", store.refunded)
	}
	if len(store.cancelled) != 1 || store.cancelled[0] != "b-1" {
		t.Errorf("cancelled = %v, want [b-1]", store.cancelled)
	}
	if pub.changes != 1 {
		t.Errorf("published %d changes, want 1", pub.changes)
	}
}

func TestAdminDeleteBooking_RefundFailureDoesNotBlockDeletion(t *testing.T) {
	b := occupied("b-1", date(2025, time.March, 4), "10:00")
	store := &stubStore{bookings: []models.Booking{b}}
	payments := &stubPayments{refundErr: errors.New("stripe is down")}
	svc, _, _ := newTestService(store, payments)

	resp, err := svc.AdminDeleteBooking(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success || resp.AutomaticRefundProcessed {
		t.Errorf("got success=%v refunded=%v, want deleted without refund", resp.Success, resp.AutomaticRefundProcessed)
	}
	if !resp.WithinPaymentWindow {
		t.Error("window flag should still report the refund was due")
	}
	if !strings.Contains(resp.Message, "manual follow-up") {
		t.Errorf("message %q should call for manual follow-up", resp.Message)
	}

	if len(store.cancelled) != 1 {
		t.Error("deletion must proceed despite the refund failure")
	}
	if len(store.refunded) != 0 {
		t.Error("payment status must not be marked refunded")
	}
}

func TestAdminDeleteBooking_OutsideWindow(t *testing.T) {
	b := occupied("b-1", date(2025, time.March, 10), "14:00") // a week out
	store := &stubStore{bookings: []models.Booking{b}}
	payments := &stubPayments{refundID: "re_1"}
	svc, _, _ := newTestService(store, payments)

	resp, err := svc.AdminDeleteBooking(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.WithinPaymentWindow || resp.AutomaticRefundProcessed {
		t.Errorf("got within=%v refunded=%v, want no refund outside the window",
			resp.WithinPaymentWindow, resp.AutomaticRefundProcessed)
	}
	if len(payments.refunds) != 0 {
		t.Error("no refund call expected outside the window")
	}
	if len(store.cancelled) != 1 {
		t.Error("booking should still be deleted")
	}
}

func TestAdminDeleteBooking_NotFound(t *testing.T) {
	svc, _, _ := newTestService(&stubStore{}, &stubPayments{})

	_, err := svc.AdminDeleteBooking(context.Background(), "missing")
	if !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestGetAvailability(t *testing.T) {
	store := &stubStore{
		bookings: []models.Booking{occupied("b-1", date(2025, time.March, 10), "14:00:00")},
	}
	svc, _, _ := newTestService(store, &stubPayments{})

	resp, err := svc.GetAvailability(context.Background(), "2025-03-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Selectable {
		t.Error("a future Monday should be selectable")
	}
	if len(resp.Slots) != 12 {
		t.Fatalf("got %d slots, want 12", len(resp.Slots))
	}

	for _, slot := range resp.Slots {
		wantAvailable := slot.Time != "14:00"
		if slot.Available != wantAvailable {
			t.Errorf("slot %s available=%v, want %v", slot.Time, slot.Available, wantAvailable)
		}
	}

	if _, err := svc.GetAvailability(context.Background(), "10/03/2025"); !errors.Is(err, response.ErrBadRequest) {
		t.Error("malformed date should be a bad request")
	}
}

func TestPreviewSeries(t *testing.T) {
	svc, _, _ := newTestService(&stubStore{}, &stubPayments{})

	resp, err := svc.PreviewSeries(context.Background(), &api.SeriesPreviewRequest{
		StartDate: "2025-03-10",
		Service:   "individual",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.TotalLessons != 5 || len(resp.Dates) != 5 {
		t.Fatalf("got %d lessons, want 5", resp.TotalLessons)
	}
	if resp.Dates[0] != "2025-03-10" || resp.Dates[4] != "2025-04-07" {
		t.Errorf("series spans %s..%s, want 2025-03-10..2025-04-07", resp.Dates[0], resp.Dates[4])
	}
	if resp.AmountPerLesson != 3500 || resp.TotalAmount != 17500 {
		t.Errorf("pricing = %d/%d, want 3500/17500", resp.AmountPerLesson, resp.TotalAmount)
	}
	if resp.EndDate != "2025-04-07" {
		t.Errorf("end date = %q, want 2025-04-07", resp.EndDate)
	}

	if _, err := svc.PreviewSeries(context.Background(), &api.SeriesPreviewRequest{
		StartDate: "2025-03-09", // Sunday
		Service:   "individual",
	}); !errors.Is(err, response.ErrValidation) {
		t.Error("sunday start should fail validation")
	}
}
