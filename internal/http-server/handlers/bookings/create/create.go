package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"tutoring-service/api"
	"tutoring-service/pkg/response"
	"tutoring-service/pkg/sl"
)

type BookingConfirmer interface {
	ConfirmBooking(ctx context.Context, req *api.CreateBookingRequest) (*api.CreateBookingResponse, error)
}

type Request struct {
	api.CreateBookingRequest
}

type Response struct {
	response.Response
	*api.CreateBookingResponse
}

func New(log *slog.Logger, confirmer BookingConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded",
			slog.String("booking_request_id", req.RequestID),
			slog.String("date", req.BookingDetails.Date),
			slog.String("time", req.BookingDetails.Time),
			slog.String("lesson_type", req.BookingDetails.LessonType),
		)

		result, err := confirmer.ConfirmBooking(r.Context(), &req.CreateBookingRequest)

		if errors.Is(err, response.ErrConfirmationInFlight) {
			log.Error("confirmation already in flight")
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error(string(response.IN_FLIGHT), "a confirmation is already in progress"))
			return
		}

		if errors.Is(err, response.ErrValidation) {
			var verr *response.ValidationError
			msg := "validation failed"
			if errors.As(err, &verr) {
				msg = verr.Reason
			}
			log.Error("validation failed", slog.String("reason", msg))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), msg))
			return
		}

		if errors.Is(err, response.ErrSlotNotAvailable) {
			log.Error("slot is no longer available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_NOT_AVAILABLE), "slot is no longer available"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("slot is locked by another confirmation")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "slot is locked, try again"))
			return
		}

		if err != nil {
			log.Error("Failed to confirm booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to confirm booking"))
			return
		}

		log.Info("Booking confirmed",
			slog.Bool("recurring", result.RecurringSeries),
			slog.Int("bookings_created", result.BookingsCreated),
		)

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			CreateBookingResponse: result,
		})
	}
}
