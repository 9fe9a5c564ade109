package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const scheduleColumns = `id, group_id, doctor_id, day_of_week, start_time, end_time,
	break_start_time, break_end_time, slot_duration, is_active, created_at, updated_at`

// ScheduleRepository управляет недельными расписаниями врачей
type ScheduleRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewScheduleRepository создаёт новый репозиторий
func NewScheduleRepository(pool *pgxpool.Pool, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Upsert сохраняет расписание на день недели. Повторная запись того же дня
// перезаписывает часы и снова делает расписание активным.
func (r *ScheduleRepository) Upsert(ctx context.Context, schedule *model.WeeklySchedule) error {
	query := `
		INSERT INTO doctor_schedules (group_id, doctor_id, day_of_week, start_time, end_time,
			break_start_time, break_end_time, slot_duration, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			break_start_time = EXCLUDED.break_start_time,
			break_end_time = EXCLUDED.break_end_time,
			slot_duration = EXCLUDED.slot_duration,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING id, is_active, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		schedule.GroupID,
		schedule.DoctorID,
		schedule.DayOfWeek,
		clockToPg(schedule.StartTime),
		clockToPg(schedule.EndTime),
		optionalClockToPg(schedule.BreakStart),
		optionalClockToPg(schedule.BreakEnd),
		schedule.SlotDurationMinutes,
	).Scan(&schedule.ID, &schedule.IsActive, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	r.logger.Debug("Schedule saved",
		zap.Int64("schedule_id", schedule.ID),
		zap.Int64("doctor_id", schedule.DoctorID),
		zap.Int("day_of_week", schedule.DayOfWeek))

	return nil
}

// GetByID получает расписание по ID
func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*model.WeeklySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM doctor_schedules WHERE id = $1`

	schedule, err := scanSchedule(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule by id: %w", err)
	}

	return schedule, nil
}

// GetByDoctorAndWeekday получает расписание врача на день недели, в том числе неактивное
func (r *ScheduleRepository) GetByDoctorAndWeekday(ctx context.Context, doctorID int64, dayOfWeek int) (*model.WeeklySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM doctor_schedules WHERE doctor_id = $1 AND day_of_week = $2`

	schedule, err := scanSchedule(r.QueryRow(ctx, query, doctorID, dayOfWeek))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule by weekday: %w", err)
	}

	return schedule, nil
}

// ListByDoctor возвращает все расписания врача по дням недели
func (r *ScheduleRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]*model.WeeklySchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM doctor_schedules WHERE doctor_id = $1 ORDER BY day_of_week`

	rows, err := r.Query(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*model.WeeklySchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	return schedules, nil
}

// SetActive включает или выключает расписание, возвращает false если его нет
func (r *ScheduleRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	query := `UPDATE doctor_schedules SET is_active = $2, updated_at = NOW() WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id, active)
	if err != nil {
		return false, fmt.Errorf("set schedule active: %w", err)
	}

	return affected > 0, nil
}

func scanSchedule(row pgx.Row) (*model.WeeklySchedule, error) {
	var (
		schedule             model.WeeklySchedule
		start, end           pgtype.Time
		breakStart, breakEnd pgtype.Time
	)

	err := row.Scan(
		&schedule.ID,
		&schedule.GroupID,
		&schedule.DoctorID,
		&schedule.DayOfWeek,
		&start,
		&end,
		&breakStart,
		&breakEnd,
		&schedule.SlotDurationMinutes,
		&schedule.IsActive,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	schedule.StartTime = clockFromPg(start)
	schedule.EndTime = clockFromPg(end)
	schedule.BreakStart = optionalClockFromPg(breakStart)
	schedule.BreakEnd = optionalClockFromPg(breakEnd)

	return &schedule, nil
}
