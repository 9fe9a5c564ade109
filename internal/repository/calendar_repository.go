package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CalendarRepository отметки врача на конкретные даты
type CalendarRepository struct {
	*base.Repository
}

func NewCalendarRepository(pool *pgxpool.Pool) *CalendarRepository {
	return &CalendarRepository{Repository: base.NewRepository(pool)}
}

// Get возвращает отметку на дату или nil
func (r *CalendarRepository) Get(ctx context.Context, doctorID int64, date time.Time) (*model.CalendarOverride, error) {
	query := `
		SELECT doctor_id, calendar_date, is_working, COALESCE(note, ''), updated_at
		FROM doctor_calendar
		WHERE doctor_id = $1 AND calendar_date = $2
	`

	var o model.CalendarOverride
	err := r.QueryRow(ctx, query, doctorID, date).Scan(
		&o.DoctorID, &o.Date, &o.IsWorking, &o.Note, &o.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get calendar override: %w", err)
	}

	o.Date = model.TruncateDate(o.Date)
	return &o, nil
}

// Upsert создаёт или обновляет отметку на дату
func (r *CalendarRepository) Upsert(ctx context.Context, o *model.CalendarOverride) error {
	query := `
		INSERT INTO doctor_calendar (doctor_id, calendar_date, is_working, note)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (doctor_id, calendar_date) DO UPDATE SET
			is_working = EXCLUDED.is_working,
			note = EXCLUDED.note,
			updated_at = NOW()
		RETURNING updated_at
	`

	if err := r.QueryRow(ctx, query, o.DoctorID, o.Date, o.IsWorking, o.Note).Scan(&o.UpdatedAt); err != nil {
		return fmt.Errorf("upsert calendar override: %w", err)
	}

	return nil
}

// ListByDoctor отметки врача в диапазоне [from, to]
func (r *CalendarRepository) ListByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.CalendarOverride, error) {
	query := `
		SELECT doctor_id, calendar_date, is_working, COALESCE(note, ''), updated_at
		FROM doctor_calendar
		WHERE doctor_id = $1 AND calendar_date BETWEEN $2 AND $3
		ORDER BY calendar_date
	`

	rows, err := r.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calendar overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*model.CalendarOverride
	for rows.Next() {
		var o model.CalendarOverride
		if err := rows.Scan(&o.DoctorID, &o.Date, &o.IsWorking, &o.Note, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar override: %w", err)
		}
		o.Date = model.TruncateDate(o.Date)
		overrides = append(overrides, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar overrides: %w", err)
	}

	return overrides, nil
}
