package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"go.uber.org/zap"
)

// SlotEngine считает сетку слотов врача на дату. Один и тот же расчёт
// используется для пациента, регистратуры, врача и при создании записи.
type SlotEngine struct {
	scheduleRepo ScheduleStore
	calendarRepo CalendarStore
	bookingRepo  BookingStore
	logger       *zap.Logger
}

func NewSlotEngine(
	scheduleRepo ScheduleStore,
	calendarRepo CalendarStore,
	bookingRepo BookingStore,
	logger *zap.Logger,
) *SlotEngine {
	return &SlotEngine{
		scheduleRepo: scheduleRepo,
		calendarRepo: calendarRepo,
		bookingRepo:  bookingRepo,
		logger:       logger,
	}
}

// GetSlots возвращает слоты врача на дату по возрастанию времени.
// Нерабочий день даёт пустой список, а не ошибку.
func (e *SlotEngine) GetSlots(ctx context.Context, doctorID int64, date time.Time) ([]model.Slot, error) {
	date = model.TruncateDate(date)

	schedule, err := e.workingSchedule(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return []model.Slot{}, nil
	}

	booked, err := e.bookingRepo.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("get booked times: %w", err)
	}

	slots := ComputeSlots(schedule, booked)

	e.logger.Debug("Slots computed",
		zap.Int64("doctor_id", doctorID),
		zap.String("date", date.Format(model.DateLayout)),
		zap.Int("slots", len(slots)))

	return slots, nil
}

// workingSchedule выбирает расписание на дату. Отметка в календаре главнее
// недельного расписания, но часы берутся только из активного расписания дня недели.
func (e *SlotEngine) workingSchedule(ctx context.Context, doctorID int64, date time.Time) (*model.WeeklySchedule, error) {
	override, err := e.calendarRepo.Get(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("get calendar override: %w", err)
	}
	if override != nil && !override.IsWorking {
		return nil, nil
	}

	schedule, err := e.scheduleRepo.GetByDoctorAndWeekday(ctx, doctorID, model.WeekdayIndex(date))
	if err != nil {
		return nil, fmt.Errorf("get weekly schedule: %w", err)
	}
	if schedule == nil || !schedule.IsActive {
		return nil, nil
	}

	return schedule, nil
}

// ComputeSlots строит сетку по расписанию. Хвост короче длительности слота отбрасывается.
func ComputeSlots(schedule *model.WeeklySchedule, booked []model.Clock) []model.Slot {
	slots := []model.Slot{}
	if schedule == nil || schedule.SlotDurationMinutes <= 0 {
		return slots
	}

	taken := make(map[model.Clock]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	step := schedule.SlotDurationMinutes
	for t := schedule.StartTime; t.Add(step) <= schedule.EndTime; t = t.Add(step) {
		status := model.SlotStatusAvailable
		if schedule.InBreak(t) {
			status = model.SlotStatusBreak
		} else if _, ok := taken[t]; ok {
			status = model.SlotStatusBooked
		}
		slots = append(slots, model.Slot{Time: t, Status: status})
	}

	return slots
}

// FindSlot ищет слот с заданным временем начала
func FindSlot(slots []model.Slot, at model.Clock) (model.Slot, bool) {
	for _, s := range slots {
		if s.Time == at {
			return s, true
		}
	}
	return model.Slot{}, false
}
