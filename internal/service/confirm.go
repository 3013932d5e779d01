package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tutoring-service/api"
	"tutoring-service/internal/models"
	"tutoring-service/internal/payment"
	"tutoring-service/internal/schedule"
	"tutoring-service/pkg/response"
	"tutoring-service/pkg/sl"
)

// Confirmation states. "In flight" is a named state, not a flag: a user with
// a confirmation in any state before succeeded/failed cannot start another.
type confirmState string

const (
	stateValidating   confirmState = "validating"
	stateRevalidating confirmState = "revalidating"
	stateSubmitting   confirmState = "submitting"
	stateSucceeded    confirmState = "succeeded"
	stateFailed       confirmState = "failed"
)

const slotLockTTL = 10 * time.Second

// ConfirmBooking sequences validation, a late re-check against freshly
// reloaded data, and idempotent submission. Local checks are an optimistic
// pre-filter; the store's unique index is the authoritative conflict check,
// so a commit-time conflict is an expected outcome, answered with a snapshot
// refresh.
func (s *Service) ConfirmBooking(ctx context.Context, req *api.CreateBookingRequest) (resp *api.CreateBookingResponse, err error) {
	const op = "service.ConfirmBooking"

	if verr := validateRequest(req); verr != nil {
		return nil, fmt.Errorf("%s: %w", op, verr)
	}

	if !s.beginConfirmation(req.UserInfo.ID) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrConfirmationInFlight)
	}

	state := stateValidating

	// Single exit point: the guard clears on every branch.
	defer func() {
		final := stateSucceeded
		if err != nil {
			final = stateFailed
		}
		s.log.Debug("confirmation finished",
			slog.String("op", op),
			slog.String("last_state", string(state)),
			slog.String("final_state", string(final)),
		)
		s.endConfirmation(req.UserInfo.ID)
	}()

	// Replay a prior submission with the same idempotency key instead of
	// creating a second booking.
	prior, perr := s.store.GetBookingByRequestID(ctx, req.RequestID)
	if perr == nil {
		return s.replaySubmission(ctx, prior)
	}
	if !errors.Is(perr, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, perr)
	}

	date, derr := time.ParseInLocation("2006-01-02", req.BookingDetails.Date, time.Local)
	if derr != nil {
		return nil, fmt.Errorf("%s: %w", op, response.Validation("invalid lesson date"))
	}
	tod := schedule.NormalizeTime(req.BookingDetails.Time)
	now := s.clock()
	recurring := req.BookingDetails.LessonType == string(models.LessonRecurring) || req.BookingDetails.IsRecurring

	cand := schedule.Candidate{
		ServiceType: models.ServiceType(req.BookingDetails.Service),
		LessonType:  models.LessonSingle,
	}
	if recurring {
		cand.LessonType = models.LessonRecurring
	}

	if !schedule.IsDateSelectable(date, now) {
		return nil, fmt.Errorf("%s: %w", op, response.Validation(schedule.ErrDateNotSelectable.Error()))
	}

	var dates []time.Time
	snap := s.Snapshot()

	if recurring {
		dates = schedule.GenerateSeriesDates(date, s.programEnd)
		if verr := s.checkSeries(ctx, snap, dates, tod, now, cand); verr != nil {
			return nil, fmt.Errorf("%s: %w", op, verr)
		}
	} else {
		if verr := schedule.ValidateSingleLessonWindow(date, tod, now); verr != nil {
			return nil, fmt.Errorf("%s: %w", op, response.Validation(verr.Error()))
		}
		if !schedule.IsTimeSlotAvailable(snap, date, tod, cand) {
			s.RefreshSnapshot(ctx)
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		}
	}

	// Late re-check against freshly reloaded data; shrinks, not eliminates,
	// the race window before the store settles it.
	state = stateRevalidating
	s.RefreshSnapshot(ctx)
	snap = s.Snapshot()

	if recurring {
		if verr := s.checkSeries(ctx, snap, dates, tod, now, cand); verr != nil {
			return nil, fmt.Errorf("%s: %w", op, verr)
		}
	} else if !schedule.IsTimeSlotAvailable(snap, date, tod, cand) {
		s.RefreshSnapshot(ctx)
		return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	state = stateSubmitting
	lockKey := fmt.Sprintf("slot:%s:%s", date.Format("2006-01-02"), tod)

	locked, lerr := s.locker.Lock(ctx, lockKey, slotLockTTL)
	if lerr != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, lerr)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	if recurring {
		resp, err = s.submitSeries(ctx, req, dates, tod)
	} else {
		resp, err = s.submitSingle(ctx, req, date, tod)
	}
	if err != nil {
		if errors.Is(err, response.ErrSlotNotAvailable) {
			s.RefreshSnapshot(ctx)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.RefreshSnapshot(ctx)
	if perr := s.publisher.BookingsChanged(ctx); perr != nil {
		s.log.Warn("failed to publish booking change", slog.String("op", op), sl.Err(perr))
	}

	return resp, nil
}

// checkSeries maps series validation failures onto the response taxonomy:
// conflicts keep their slot-not-available identity and trigger a refresh,
// everything else is a validation error.
func (s *Service) checkSeries(ctx context.Context, snap schedule.Snapshot, dates []time.Time, tod string, now time.Time, cand schedule.Candidate) error {
	err := schedule.ValidateSeries(snap, dates, tod, now, cand)
	if err == nil {
		return nil
	}

	if errors.Is(err, response.ErrSlotNotAvailable) {
		s.RefreshSnapshot(ctx)
		return err
	}

	return response.Validation(err.Error())
}

// submitSingle creates the pending-payment record and its payment intent. The
// lesson stays pending until payment completes externally inside the 24-hour
// window.
func (s *Service) submitSingle(ctx context.Context, req *api.CreateBookingRequest, date time.Time, tod string) (*api.CreateBookingResponse, error) {
	const op = "service.submitSingle"

	service := models.ServiceType(req.BookingDetails.Service)
	perLesson, _ := models.LessonPrice(service)

	intent, err := s.payments.CreateIntent(ctx, payment.CreateIntentParams{
		Amount:         perLesson,
		Currency:       currencyOrDefault(req.Currency),
		Description:    req.ProductName,
		IdempotencyKey: req.RequestID,
		Metadata: map[string]string{
			"user_id":     req.UserInfo.ID,
			"lesson_date": date.Format("2006-01-02"),
			"lesson_time": tod,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create payment intent: %w", op, err)
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		UserID:          req.UserInfo.ID,
		StudentEmail:    req.BookingDetails.StudentEmail,
		LessonDate:      date,
		LessonTime:      tod,
		LessonDay:       schedule.WeekdayName(date),
		ServiceType:     service,
		LessonType:      models.LessonSingle,
		Status:          models.BookingPending,
		PaymentStatus:   models.PaymentPending,
		Amount:          perLesson,
		Currency:        currencyOrDefault(req.Currency),
		PaymentIntentID: intent.ID,
		RequestID:       req.RequestID,
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.CreateBookingResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// submitSeries creates every booking of the series in one transaction, paid
// up front by a single intent for amount × total. A conflict on any row rolls
// the whole series back.
func (s *Service) submitSeries(ctx context.Context, req *api.CreateBookingRequest, dates []time.Time, tod string) (*api.CreateBookingResponse, error) {
	const op = "service.submitSeries"

	service := models.ServiceType(req.BookingDetails.Service)
	perLesson, _ := models.LessonPrice(service)
	total := len(dates)
	seriesID := uuid.NewString()

	intent, err := s.payments.CreateIntent(ctx, payment.CreateIntentParams{
		Amount:         perLesson * int64(total),
		Currency:       currencyOrDefault(req.Currency),
		Description:    fmt.Sprintf("%s (%d weekly lessons)", req.ProductName, total),
		IdempotencyKey: req.RequestID,
		Metadata: map[string]string{
			"user_id":             req.UserInfo.ID,
			"recurring_series_id": seriesID,
			"lesson_time":         tod,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create payment intent: %w", op, err)
	}

	bookings := make([]models.Booking, 0, total)
	for i, date := range dates {
		number := i + 1
		bookings = append(bookings, models.Booking{
			ID:                     uuid.NewString(),
			UserID:                 req.UserInfo.ID,
			StudentEmail:           req.BookingDetails.StudentEmail,
			LessonDate:             date,
			LessonTime:             tod,
			LessonDay:              schedule.WeekdayName(date),
			ServiceType:            service,
			LessonType:             models.LessonRecurring,
			Status:                 models.BookingScheduled,
			PaymentStatus:          models.PaymentPaid,
			Amount:                 perLesson,
			Currency:               currencyOrDefault(req.Currency),
			PaymentIntentID:        intent.ID,
			RequestID:              req.RequestID,
			RecurringSeriesID:      &seriesID,
			RecurringSessionNumber: &number,
			RecurringSessionTotal:  &total,
		})
	}

	if err := s.store.CreateSeries(ctx, bookings); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.CreateBookingResponse{
		Success:         true,
		RecurringSeries: true,
		BookingsCreated: total,
	}, nil
}

// replaySubmission answers a retried request_id without creating anything.
func (s *Service) replaySubmission(ctx context.Context, prior *models.Booking) (*api.CreateBookingResponse, error) {
	const op = "service.replaySubmission"

	if prior.LessonType == models.LessonRecurring {
		total := 0
		if prior.RecurringSessionTotal != nil {
			total = *prior.RecurringSessionTotal
		}

		return &api.CreateBookingResponse{
			Success:         true,
			RecurringSeries: true,
			BookingsCreated: total,
		}, nil
	}

	intent, err := s.payments.GetIntent(ctx, prior.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.CreateBookingResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

func (s *Service) beginConfirmation(userID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, ok := s.inflight[userID]; ok {
		return false
	}
	s.inflight[userID] = struct{}{}

	return true
}

func (s *Service) endConfirmation(userID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	delete(s.inflight, userID)
}

func validateRequest(req *api.CreateBookingRequest) error {
	switch {
	case req.RequestID == "":
		return response.Validation("request_id is required")
	case req.UserInfo.ID == "":
		return response.Validation("user id is required")
	case req.BookingDetails.Date == "":
		return response.Validation("date is required")
	case req.BookingDetails.Time == "":
		return response.Validation("time is required")
	case req.BookingDetails.StudentEmail == "":
		return response.Validation("student_email is required")
	case !models.ValidServiceType(req.BookingDetails.Service):
		return response.Validation("unknown service type")
	}

	lt := models.LessonType(req.BookingDetails.LessonType)
	if lt != models.LessonSingle && lt != models.LessonRecurring {
		return response.Validation("lesson_type must be single or recurring")
	}

	return nil
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return models.DefaultCurrency
	}

	return currency
}
