package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScheduleInput часы работы врача на день недели
type ScheduleInput struct {
	DoctorID            int64
	DayOfWeek           int
	StartTime           model.Clock
	EndTime             model.Clock
	BreakStart          *model.Clock
	BreakEnd            *model.Clock
	SlotDurationMinutes int
}

// CalendarResult итог отметки в календаре. ScheduledBookings показывает сколько
// активных записей осталось на день, который только что стал нерабочим.
type CalendarResult struct {
	Override          *model.CalendarOverride `json:"override"`
	ScheduledBookings int                     `json:"scheduled_bookings"`
}

// ScheduleService недельные расписания и календарь врача
type ScheduleService struct {
	tx           Transactor
	doctorRepo   DoctorStore
	scheduleRepo ScheduleStore
	calendarRepo CalendarStore
	bookingRepo  BookingStore
	activity     *ActivityService
	logger       *zap.Logger
}

func NewScheduleService(
	tx Transactor,
	doctorRepo DoctorStore,
	scheduleRepo ScheduleStore,
	calendarRepo CalendarStore,
	bookingRepo BookingStore,
	activity *ActivityService,
	logger *zap.Logger,
) *ScheduleService {
	return &ScheduleService{
		tx:           tx,
		doctorRepo:   doctorRepo,
		scheduleRepo: scheduleRepo,
		calendarRepo: calendarRepo,
		bookingRepo:  bookingRepo,
		activity:     activity,
		logger:       logger,
	}
}

// ValidateSchedule проверяет часы работы до записи в хранилище
func ValidateSchedule(in ScheduleInput) error {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be in 0..6", ErrInvalidInput)
	}
	if in.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrConfiguration)
	}
	if !in.StartTime.Valid() || !in.EndTime.Valid() || in.StartTime >= in.EndTime {
		return fmt.Errorf("%w: start time must be before end time", ErrConfiguration)
	}

	if in.BreakStart != nil && in.BreakEnd != nil {
		bs, be := *in.BreakStart, *in.BreakEnd
		if bs < in.StartTime || bs >= be || be > in.EndTime {
			return fmt.Errorf("%w: break must lie inside working hours", ErrConfiguration)
		}
	}

	return nil
}

// UpsertWeeklySchedule создаёт или заменяет расписание на день недели
func (s *ScheduleService) UpsertWeeklySchedule(ctx context.Context, actor Actor, in ScheduleInput) (*model.WeeklySchedule, error) {
	if !actor.CanManageDoctor(in.DoctorID) {
		return nil, ErrForbidden
	}
	if err := ValidateSchedule(in); err != nil {
		return nil, err
	}
	if err := s.ensureDoctor(ctx, in.DoctorID); err != nil {
		return nil, err
	}

	existing, err := s.scheduleRepo.GetByDoctorAndWeekday(ctx, in.DoctorID, in.DayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	groupID := uuid.New()
	if existing != nil {
		groupID = existing.GroupID
	}

	schedule := scheduleFromInput(in, groupID)
	if err := s.scheduleRepo.Upsert(ctx, schedule); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	s.logger.Info("Weekly schedule saved",
		zap.Int64("doctor_id", in.DoctorID),
		zap.Int("day_of_week", in.DayOfWeek),
		zap.String("hours", in.StartTime.String()+"-"+in.EndTime.String()))

	s.activity.Record(ctx, in.DoctorID, actor, model.ActivityScheduleUpdated, scheduleDetails(schedule))

	return schedule, nil
}

// ListWeeklySchedules все дни недели врача, в том числе выключенные
func (s *ScheduleService) ListWeeklySchedules(ctx context.Context, actor Actor, doctorID int64) ([]*model.WeeklySchedule, error) {
	if !actor.CanViewDoctor(doctorID) {
		return nil, ErrForbidden
	}

	schedules, err := s.scheduleRepo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	return schedules, nil
}

// SetWeeklyScheduleActive включает или выключает день недели без удаления часов
func (s *ScheduleService) SetWeeklyScheduleActive(ctx context.Context, actor Actor, id int64, active bool) (*model.WeeklySchedule, error) {
	schedule, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageDoctor(schedule.DoctorID) {
		return nil, ErrForbidden
	}

	ok, err := s.scheduleRepo.SetActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set schedule active: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}

	schedule.IsActive = active
	s.activity.Record(ctx, schedule.DoctorID, actor, model.ActivityScheduleUpdated,
		fmt.Sprintf("day %d active=%t", schedule.DayOfWeek, active))

	return schedule, nil
}

// CopyWeeklySchedule переносит часы расписания на другие дни недели.
// Все копии получают group_id исходного расписания.
func (s *ScheduleService) CopyWeeklySchedule(ctx context.Context, actor Actor, sourceID int64, weekdays []int) ([]*model.WeeklySchedule, error) {
	source, err := s.getSchedule(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageDoctor(source.DoctorID) {
		return nil, ErrForbidden
	}

	days, err := copyTargets(source.DayOfWeek, weekdays)
	if err != nil {
		return nil, err
	}

	copies := make([]*model.WeeklySchedule, 0, len(days))
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, day := range days {
			in := ScheduleInput{
				DoctorID:            source.DoctorID,
				DayOfWeek:           day,
				StartTime:           source.StartTime,
				EndTime:             source.EndTime,
				BreakStart:          source.BreakStart,
				BreakEnd:            source.BreakEnd,
				SlotDurationMinutes: source.SlotDurationMinutes,
			}

			schedule := scheduleFromInput(in, source.GroupID)
			if err := s.scheduleRepo.Upsert(ctx, schedule); err != nil {
				return fmt.Errorf("copy schedule to day %d: %w", day, err)
			}
			copies = append(copies, schedule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Weekly schedule copied",
		zap.Int64("schedule_id", sourceID),
		zap.Ints("days", days))

	s.activity.Record(ctx, source.DoctorID, actor, model.ActivityScheduleUpdated,
		fmt.Sprintf("copied day %d to %v", source.DayOfWeek, days))

	return copies, nil
}

// ToggleCalendarOverride отмечает дату рабочей или нерабочей. Записи на
// нерабочий день не отменяются, их количество возвращается предупреждением.
func (s *ScheduleService) ToggleCalendarOverride(ctx context.Context, actor Actor, doctorID int64, date time.Time, isWorking bool, note string) (*CalendarResult, error) {
	if !actor.CanManageDoctor(doctorID) {
		return nil, ErrForbidden
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if err := s.ensureDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	override := &model.CalendarOverride{
		DoctorID:  doctorID,
		Date:      model.TruncateDate(date),
		IsWorking: isWorking,
		Note:      strings.TrimSpace(note),
	}
	if err := s.calendarRepo.Upsert(ctx, override); err != nil {
		return nil, fmt.Errorf("save calendar override: %w", err)
	}

	result := &CalendarResult{Override: override}
	if !isWorking {
		count, err := s.bookingRepo.CountScheduled(ctx, doctorID, override.Date)
		if err != nil {
			return nil, fmt.Errorf("count bookings: %w", err)
		}
		result.ScheduledBookings = count

		if count > 0 {
			s.logger.Warn("Day marked off with active bookings",
				zap.Int64("doctor_id", doctorID),
				zap.String("date", override.Date.Format(model.DateLayout)),
				zap.Int("bookings", count))
		}
	}

	s.activity.Record(ctx, doctorID, actor, model.ActivityCalendarUpdated,
		fmt.Sprintf("%s working=%t", override.Date.Format(model.DateLayout), isWorking))

	return result, nil
}

// ListCalendarOverrides отметки врача за год
func (s *ScheduleService) ListCalendarOverrides(ctx context.Context, actor Actor, doctorID int64, year int) ([]*model.CalendarOverride, error) {
	if !actor.CanViewDoctor(doctorID) {
		return nil, ErrForbidden
	}
	if year < 1970 || year > 9999 {
		return nil, fmt.Errorf("%w: invalid year %d", ErrInvalidInput, year)
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	overrides, err := s.calendarRepo.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calendar overrides: %w", err)
	}

	return overrides, nil
}

func (s *ScheduleService) ensureDoctor(ctx context.Context, doctorID int64) error {
	doctor, err := s.doctorRepo.GetByID(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("get doctor: %w", err)
	}
	if doctor == nil {
		return fmt.Errorf("%w: doctor %d", ErrNotFound, doctorID)
	}
	return nil
}

func (s *ScheduleService) getSchedule(ctx context.Context, id int64) (*model.WeeklySchedule, error) {
	schedule, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: schedule %d", ErrNotFound, id)
	}
	return schedule, nil
}

// copyTargets дни для копирования без исходного дня и повторов
func copyTargets(sourceDay int, weekdays []int) ([]int, error) {
	seen := make(map[int]bool, len(weekdays))
	var days []int
	for _, d := range weekdays {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: day_of_week must be in 0..6", ErrInvalidInput)
		}
		if d == sourceDay || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}

	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no target days", ErrInvalidInput)
	}

	sort.Ints(days)
	return days, nil
}

func scheduleFromInput(in ScheduleInput, groupID uuid.UUID) *model.WeeklySchedule {
	schedule := &model.WeeklySchedule{
		GroupID:             groupID,
		DoctorID:            in.DoctorID,
		DayOfWeek:           in.DayOfWeek,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		SlotDurationMinutes: in.SlotDurationMinutes,
		IsActive:            true,
	}

	// Перерыв с одной границей не сохраняем
	if in.BreakStart != nil && in.BreakEnd != nil {
		bs, be := *in.BreakStart, *in.BreakEnd
		schedule.BreakStart, schedule.BreakEnd = &bs, &be
	}

	return schedule
}

func scheduleDetails(s *model.WeeklySchedule) string {
	details := fmt.Sprintf("day %d %s-%s slot %d", s.DayOfWeek, s.StartTime, s.EndTime, s.SlotDurationMinutes)
	if s.HasBreak() {
		details += fmt.Sprintf(" break %s-%s", *s.BreakStart, *s.BreakEnd)
	}
	return details
}
