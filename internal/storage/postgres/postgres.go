package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"tutoring-service/internal/models"
	"tutoring-service/pkg/response"
)

type Storage struct {
	db *sql.DB
}

// Schema is applied on startup. Slot exclusivity is enforced authoritatively
// by bookings_active_slot_idx: at most one active, non-deleted booking per
// (lesson_date, lesson_time). Idempotent resubmission is deduplicated by
// bookings_request_idx (recurring rows of one series share a request_id and
// are distinguished by session number).
const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id                       UUID PRIMARY KEY,
	user_id                  TEXT NOT NULL,
	student_email            TEXT NOT NULL,
	lesson_date              DATE NOT NULL,
	lesson_time              VARCHAR(8) NOT NULL,
	lesson_day               TEXT NOT NULL,
	service_type             TEXT NOT NULL,
	lesson_type              TEXT NOT NULL,
	status                   TEXT NOT NULL,
	payment_status           TEXT NOT NULL,
	amount                   BIGINT NOT NULL,
	currency                 VARCHAR(3) NOT NULL,
	payment_intent_id        TEXT NOT NULL DEFAULT '',
	request_id               TEXT NOT NULL,
	recurring_series_id      UUID,
	recurring_session_number INT,
	recurring_session_total  INT,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at               TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_slot_idx
	ON bookings (lesson_date, lesson_time)
	WHERE status <> 'cancelled' AND payment_status <> 'refunded' AND deleted_at IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS bookings_request_idx
	ON bookings (request_id, COALESCE(recurring_session_number, 0));
`

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

const bookingColumns = `id, user_id, student_email, lesson_date, lesson_time, lesson_day,
	service_type, lesson_type, status, payment_status, amount, currency,
	payment_intent_id, request_id, recurring_series_id, recurring_session_number,
	recurring_session_total, created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var seriesID sql.NullString
	var sessionNumber, sessionTotal sql.NullInt64
	var deletedAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.UserID, &b.StudentEmail, &b.LessonDate, &b.LessonTime, &b.LessonDay,
		&b.ServiceType, &b.LessonType, &b.Status, &b.PaymentStatus, &b.Amount, &b.Currency,
		&b.PaymentIntentID, &b.RequestID, &seriesID, &sessionNumber,
		&sessionTotal, &b.CreatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if seriesID.Valid {
		b.RecurringSeriesID = &seriesID.String
	}
	if sessionNumber.Valid {
		n := int(sessionNumber.Int64)
		b.RecurringSessionNumber = &n
	}
	if sessionTotal.Valid {
		n := int(sessionTotal.Int64)
		b.RecurringSessionTotal = &n
	}
	if deletedAt.Valid {
		b.DeletedAt = &deletedAt.Time
	}

	return &b, nil
}

// ListBookings returns every non-deleted booking, newest first. This is the
// snapshot source and deliberately spans all users.
func (s *Storage) ListBookings(ctx context.Context) ([]models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=$1 AND deleted_at IS NULL`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// GetBookingByRequestID finds a prior submission with the same idempotency
// key: the single booking, or the first session of a recurring series.
func (s *Storage) GetBookingByRequestID(ctx context.Context, requestID string) (*models.Booking, error) {
	const op = "storage.postgres.GetBookingByRequestID"

	b, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE request_id=$1
		 ORDER BY COALESCE(recurring_session_number, 0) ASC
		 LIMIT 1`, requestID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (s *Storage) ListBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	const op = "storage.postgres.ListBookingsByUser"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE user_id=$1 AND deleted_at IS NULL
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBooking(ctx context.Context, db execer, b *models.Booking) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO bookings
		(id, user_id, student_email, lesson_date, lesson_time, lesson_day,
		 service_type, lesson_type, status, payment_status, amount, currency,
		 payment_intent_id, request_id, recurring_series_id,
		 recurring_session_number, recurring_session_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		b.ID, b.UserID, b.StudentEmail, b.LessonDate, b.LessonTime, b.LessonDay,
		b.ServiceType, b.LessonType, b.Status, b.PaymentStatus, b.Amount, b.Currency,
		b.PaymentIntentID, b.RequestID, b.RecurringSeriesID,
		b.RecurringSessionNumber, b.RecurringSessionTotal,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "bookings_active_slot_idx":
				return response.ErrSlotNotAvailable
			case "bookings_request_idx":
				return response.ErrDuplicateRequest
			default:
				return response.ErrConflict
			}
		}

		return err
	}

	return nil
}

func (s *Storage) CreateBooking(ctx context.Context, b *models.Booking) error {
	const op = "storage.postgres.CreateBooking"

	if err := insertBooking(ctx, s.db, b); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CreateSeries inserts every booking of a recurring series in one
// transaction: a conflict on any row rolls the whole series back, so no
// partial series is ever persisted.
func (s *Storage) CreateSeries(ctx context.Context, bookings []models.Booking) error {
	const op = "storage.postgres.CreateSeries"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := range bookings {
		if err := insertBooking(ctx, tx, &bookings[i]); err != nil {
			return fmt.Errorf("%s: session %d: %w", op, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

// CancelAndSoftDelete marks the booking cancelled and removes it from every
// snapshot in one statement.
func (s *Storage) CancelAndSoftDelete(ctx context.Context, id string, now time.Time) error {
	const op = "storage.postgres.CancelAndSoftDelete"

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status=$1, deleted_at=$2 WHERE id=$3 AND deleted_at IS NULL`,
		models.BookingCancelled, now, id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) MarkRefunded(ctx context.Context, id string) error {
	const op = "storage.postgres.MarkRefunded"

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status=$1 WHERE id=$2`,
		models.PaymentRefunded, id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}
