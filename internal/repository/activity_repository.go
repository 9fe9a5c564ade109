package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository журнал действий по врачу
type ActivityRepository struct {
	*base.Repository
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{Repository: base.NewRepository(pool)}
}

// Create добавляет запись в журнал
func (r *ActivityRepository) Create(ctx context.Context, entry *model.ActivityEntry) error {
	query := `
		INSERT INTO doctor_activity (doctor_id, actor, action, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, entry.DoctorID, entry.Actor, entry.Action, entry.Details).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create activity entry: %w", err)
	}

	return nil
}

// ListByDoctor последние записи журнала врача, новые первыми
func (r *ActivityRepository) ListByDoctor(ctx context.Context, doctorID int64, limit int) ([]*model.ActivityEntry, error) {
	query := `
		SELECT id, doctor_id, actor, action, details, created_at
		FROM doctor_activity
		WHERE doctor_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.Query(ctx, query, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []*model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.DoctorID, &e.Actor, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return entries, nil
}
