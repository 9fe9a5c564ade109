package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DoctorRepository struct {
	*base.Repository
}

func NewDoctorRepository(pool *pgxpool.Pool) *DoctorRepository {
	return &DoctorRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает врача по ID
func (r *DoctorRepository) GetByID(ctx context.Context, id int64) (*model.Doctor, error) {
	query := `
		SELECT id, full_name, COALESCE(specialty, ''), is_active, created_at
		FROM doctors
		WHERE id = $1
	`

	var d model.Doctor
	err := r.QueryRow(ctx, query, id).Scan(&d.ID, &d.FullName, &d.Specialty, &d.IsActive, &d.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get doctor by id: %w", err)
	}

	return &d, nil
}
