package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tutoring-service/api"
	"tutoring-service/internal/schedule"
	"tutoring-service/pkg/response"
	"tutoring-service/pkg/sl"
)

// AdminDeleteBooking cancels and soft-deletes a booking, running the
// automatic refund first when the deletion falls inside the payment window.
// Refund and deletion outcomes are reported independently: a failed refund
// does not block the deletion but is surfaced as a distinct, non-silent
// result carrying enough detail for manual reconciliation.
func (s *Service) AdminDeleteBooking(ctx context.Context, id string) (*api.AdminDeleteResponse, error) {
	const op = "service.AdminDeleteBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock()
	decision := schedule.EvaluateRefund(*booking, now)

	var refundID string
	var refundErr error

	if decision.ShouldAutoRefund {
		refundID, refundErr = s.payments.Refund(ctx, booking.PaymentIntentID)
		if refundErr != nil {
			s.log.Error("automatic refund failed, manual follow-up required",
				slog.String("op", op),
				slog.String("booking_id", booking.ID),
				slog.Int64("amount", booking.Amount),
				slog.String("currency", booking.Currency),
				sl.Err(refundErr),
			)
		} else if merr := s.store.MarkRefunded(ctx, booking.ID); merr != nil {
			s.log.Error("refund processed but payment status update failed",
				slog.String("op", op),
				slog.String("booking_id", booking.ID),
				slog.String("refund_id", refundID),
				sl.Err(merr),
			)
		}
	}

	if err := s.store.CancelAndSoftDelete(ctx, booking.ID, now); err != nil {
		return nil, deletionError(op, refundID, err)
	}

	s.RefreshSnapshot(ctx)
	if perr := s.publisher.BookingsChanged(ctx); perr != nil {
		s.log.Warn("failed to publish booking change", slog.String("op", op), sl.Err(perr))
	}

	resp := &api.AdminDeleteResponse{
		Success:                  true,
		WithinPaymentWindow:      decision.WithinPaymentWindow,
		AutomaticRefundProcessed: decision.ShouldAutoRefund && refundErr == nil,
		RefundID:                 refundID,
	}

	switch {
	case decision.ShouldAutoRefund && refundErr == nil:
		resp.Message = "booking deleted, payment refunded automatically"
	case decision.ShouldAutoRefund && refundErr != nil:
		resp.Message = fmt.Sprintf(
			"booking %s deleted but automatic refund of %d %s failed, manual follow-up required",
			booking.ID, booking.Amount, booking.Currency,
		)
	default:
		resp.Message = "booking deleted, no automatic refund due"
	}

	return resp, nil
}

// deletionError keeps the refund outcome visible when the deletion itself
// fails, so the caller can tell refund-processed-but-not-deleted apart from a
// plain failure.
func deletionError(op, refundID string, err error) error {
	if refundID != "" {
		return fmt.Errorf("%s: refund %s processed but deletion failed: %w", op, refundID, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
