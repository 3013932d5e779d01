package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tutoring-service/api"
	"tutoring-service/pkg/response"
	"tutoring-service/pkg/sl"
)

type BookingDeleter interface {
	AdminDeleteBooking(ctx context.Context, id string) (*api.AdminDeleteResponse, error)
}

type Response struct {
	response.Response
	*api.AdminDeleteResponse
}

func New(log *slog.Logger, deleter BookingDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		result, err := deleter.AdminDeleteBooking(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to delete booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete booking"))
			return
		}

		if result.AutomaticRefundProcessed {
			log.Info("Booking deleted with automatic refund",
				slog.String("id", id),
				slog.String("refund_id", result.RefundID),
			)
		} else if result.WithinPaymentWindow {
			log.Warn("Booking deleted, refund requires follow-up",
				slog.String("id", id),
				slog.String("message", result.Message),
			)
		} else {
			log.Info("Booking deleted", slog.String("id", id))
		}

		render.JSON(w, r, Response{AdminDeleteResponse: result})
	}
}
