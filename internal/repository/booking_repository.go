package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, doctor_id, booking_date, booking_time, patient_name, patient_phone,
	COALESCE(patient_snils, ''), COALESCE(description, ''), status,
	created_at, updated_at, completed_at, cancelled_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт запись. Если время уже занято, возвращает ErrSlotTaken
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (doctor_id, booking_date, booking_time, patient_name, patient_phone,
			patient_snils, description, status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		booking.DoctorID,
		booking.Date,
		clockToPg(booking.Time),
		booking.PatientName,
		booking.PatientPhone,
		booking.PatientSNILS,
		booking.Description,
		booking.Status,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает запись по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// BookedTimes время начала всех не отменённых записей врача на дату
func (r *BookingRepository) BookedTimes(ctx context.Context, doctorID int64, date time.Time) ([]model.Clock, error) {
	query := `
		SELECT booking_time
		FROM bookings
		WHERE doctor_id = $1 AND booking_date = $2 AND status <> 'cancelled'
		ORDER BY booking_time
	`

	rows, err := r.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("get booked times: %w", err)
	}
	defer rows.Close()

	var times []model.Clock
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan booked time: %w", err)
		}
		times = append(times, clockFromPg(t))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booked times: %w", err)
	}

	return times, nil
}

// ListByDoctor записи врача в диапазоне дат [from, to]
func (r *BookingRepository) ListByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE doctor_id = $1 AND booking_date BETWEEN $2 AND $3
		ORDER BY booking_date, booking_time`

	rows, err := r.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

// CountScheduled количество активных записей врача на дату
func (r *BookingRepository) CountScheduled(ctx context.Context, doctorID int64, date time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE doctor_id = $1 AND booking_date = $2 AND status = 'scheduled'
	`

	var count int
	if err := r.QueryRow(ctx, query, doctorID, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("count scheduled bookings: %w", err)
	}

	return count, nil
}

// UpdateStatus меняет статус только если текущий равен from. Возвращает false,
// если запись за это время успели перевести в другой статус.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings SET
			status = $3,
			completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN NOW() ELSE cancelled_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}

	return affected > 0, nil
}

// Reschedule переносит активную запись на другие дату и время
func (r *BookingRepository) Reschedule(ctx context.Context, id int64, date time.Time, at model.Clock) (bool, error) {
	query := `
		UPDATE bookings SET booking_date = $2, booking_time = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`

	affected, err := r.ExecAffected(ctx, query, id, date, clockToPg(at))
	if err != nil {
		if base.IsUniqueViolation(err) {
			return false, ErrSlotTaken
		}
		return false, fmt.Errorf("reschedule booking: %w", err)
	}

	return affected > 0, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		booking model.Booking
		at      pgtype.Time
	)

	err := row.Scan(
		&booking.ID,
		&booking.DoctorID,
		&booking.Date,
		&at,
		&booking.PatientName,
		&booking.PatientPhone,
		&booking.PatientSNILS,
		&booking.Description,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.CompletedAt,
		&booking.CancelledAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Date = model.TruncateDate(booking.Date)
	booking.Time = clockFromPg(at)
	return &booking, nil
}
