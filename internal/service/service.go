package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tutoring-service/api"
	"tutoring-service/internal/lock"
	"tutoring-service/internal/models"
	"tutoring-service/internal/payment"
	"tutoring-service/internal/schedule"
	"tutoring-service/pkg/response"
	"tutoring-service/pkg/sl"
)

type Store interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByRequestID(ctx context.Context, requestID string) (*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	CreateBooking(ctx context.Context, b *models.Booking) error
	CreateSeries(ctx context.Context, bookings []models.Booking) error
	CancelAndSoftDelete(ctx context.Context, id string, now time.Time) error
	MarkRefunded(ctx context.Context, id string) error
}

type PaymentBackend interface {
	CreateIntent(ctx context.Context, p payment.CreateIntentParams) (*payment.Intent, error)
	GetIntent(ctx context.Context, id string) (*payment.Intent, error)
	Refund(ctx context.Context, paymentIntentID string) (string, error)
}

type Publisher interface {
	BookingsChanged(ctx context.Context) error
}

type Service struct {
	log        *slog.Logger
	store      Store
	locker     lock.Locker
	payments   PaymentBackend
	publisher  Publisher
	programEnd time.Time
	clock      func() time.Time

	// In-memory snapshot of all non-deleted bookings: read by every check,
	// written only by RefreshSnapshot, always replaced wholesale.
	mu   sync.RWMutex
	snap schedule.Snapshot

	// Per-user re-entrancy guard for booking confirmations.
	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

func NewService(log *slog.Logger, store Store, locker lock.Locker, payments PaymentBackend, publisher Publisher, programEnd time.Time) *Service {
	return &Service{
		log:        log,
		store:      store,
		locker:     locker,
		payments:   payments,
		publisher:  publisher,
		programEnd: programEnd,
		clock:      time.Now,
		inflight:   make(map[string]struct{}),
	}
}

// RefreshSnapshot reloads the booking snapshot. On repository failure the
// previous snapshot stays in place (stale but available) and the error is
// only logged.
func (s *Service) RefreshSnapshot(ctx context.Context) {
	const op = "service.RefreshSnapshot"

	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		s.log.Error("failed to refresh booking snapshot, keeping previous",
			slog.String("op", op), sl.Err(err))
		return
	}

	snap := schedule.NewSnapshot(bookings, s.clock())

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Service) Snapshot() schedule.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snap
}

// GetAvailability computes the annotated slot grid for a date against a
// freshly loaded snapshot.
func (s *Service) GetAvailability(ctx context.Context, dateStr string) (*api.AvailabilityResponse, error) {
	const op = "service.GetAvailability"

	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrBadRequest)
	}

	s.RefreshSnapshot(ctx)
	snap := s.Snapshot()

	slots := schedule.SlotsForDate(snap, date)
	result := make([]api.SlotResponse, 0, len(slots))
	for _, slot := range slots {
		result = append(result, api.SlotResponse{
			Time:        slot.Time,
			Available:   slot.Available,
			BookedCount: slot.BookedCount,
			Capacity:    slot.Capacity,
		})
	}

	return &api.AvailabilityResponse{
		Date:       date.Format("2006-01-02"),
		Selectable: schedule.IsDateSelectable(date, s.clock()),
		Slots:      result,
	}, nil
}

// PreviewSeries expands a recurring start date into the series a confirmation
// would create, with pricing.
func (s *Service) PreviewSeries(ctx context.Context, req *api.SeriesPreviewRequest) (*api.SeriesPreviewResponse, error) {
	const op = "service.PreviewSeries"

	start, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start_date: %w", op, response.ErrBadRequest)
	}

	if !models.ValidServiceType(req.Service) {
		return nil, fmt.Errorf("%s: %w", op, response.Validation("unknown service type"))
	}

	if !schedule.IsDateSelectable(start, s.clock()) {
		return nil, fmt.Errorf("%s: %w", op, response.Validation("start date is not selectable"))
	}

	dates := schedule.GenerateSeriesDates(start, s.programEnd)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%s: %w", op, response.Validation(schedule.ErrEmptySeries.Error()))
	}

	perLesson, _ := models.LessonPrice(models.ServiceType(req.Service))

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format("2006-01-02"))
	}

	return &api.SeriesPreviewResponse{
		Dates:           formatted,
		TotalLessons:    len(dates),
		AmountPerLesson: perLesson,
		TotalAmount:     perLesson * int64(len(dates)),
		Currency:        models.DefaultCurrency,
		EndDate:         s.programEnd.Format("2006-01-02"),
	}, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toBookingResponse(booking), nil
}

func (s *Service) ListBookingsByUser(ctx context.Context, userID string) ([]*api.BookingResponse, error) {
	const op = "service.ListBookingsByUser"

	bookings, err := s.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.BookingResponse, 0, len(bookings))
	for i := range bookings {
		result = append(result, toBookingResponse(&bookings[i]))
	}

	return result, nil
}

func toBookingResponse(b *models.Booking) *api.BookingResponse {
	resp := &api.BookingResponse{
		ID:            b.ID,
		UserID:        b.UserID,
		Date:          b.LessonDate.Format("2006-01-02"),
		Time:          schedule.NormalizeTime(b.LessonTime),
		Day:           b.LessonDay,
		Service:       string(b.ServiceType),
		LessonType:    string(b.LessonType),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Amount:        b.Amount,
		Currency:      b.Currency,
		CreatedAt:     b.CreatedAt,
	}

	if b.RecurringSeriesID != nil {
		resp.RecurringSeriesID = *b.RecurringSeriesID
	}
	if b.RecurringSessionNumber != nil {
		resp.RecurringSessionNumber = *b.RecurringSessionNumber
	}
	if b.RecurringSessionTotal != nil {
		resp.RecurringSessionTotal = *b.RecurringSessionTotal
	}

	return resp
}
