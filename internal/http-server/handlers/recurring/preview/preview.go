package preview

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

type SeriesPreviewer interface {
	PreviewSeries(ctx context.Context, req *api.SeriesPreviewRequest) (*api.SeriesPreviewResponse, error)
}

type Request struct {
	api.SeriesPreviewRequest
}

type Response struct {
	response.Response
	Series *api.SeriesPreviewResponse `json:"series,omitempty"`
}

func New(log *slog.Logger, previewer SeriesPreviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.recurring.preview.New"

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

		if req.StartDate == "" {
			log.Error("start_date is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "start_date is required"))
			return
		}

		series, err := previewer.PreviewSeries(r.Context(), &req.SeriesPreviewRequest)

		if errors.Is(err, response.ErrBadRequest) {
			log.Error("invalid start_date", slog.String("start_date", req.StartDate))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid start_date"))
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

		if err != nil {
			log.Error("Failed to preview series", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to preview series"))
			return
		}

		log.Info("Series previewed",
			slog.String("start_date", req.StartDate),
			slog.Int("total_lessons", series.TotalLessons),
		)

		render.JSON(w, r, Response{Series: series})
	}
}
