package model

import (
	"time"

	"github.com/google/uuid"
)

// WeeklySchedule рабочие часы врача на день недели
type WeeklySchedule struct {
	ID                  int64     `json:"id"`
	GroupID             uuid.UUID `json:"group_id"` // общий для дней, скопированных из одного расписания
	DoctorID            int64     `json:"doctor_id"`
	DayOfWeek           int       `json:"day_of_week"` // 0 = понедельник, 6 = воскресенье
	StartTime           Clock     `json:"start_time"`
	EndTime             Clock     `json:"end_time"`
	BreakStart          *Clock    `json:"break_start_time,omitempty"`
	BreakEnd            *Clock    `json:"break_end_time,omitempty"`
	SlotDurationMinutes int       `json:"slot_duration"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasBreak перерыв учитывается только когда заданы обе границы
func (s *WeeklySchedule) HasBreak() bool {
	return s.BreakStart != nil && s.BreakEnd != nil
}

// InBreak проверяет попадает ли начало слота в [break_start, break_end)
func (s *WeeklySchedule) InBreak(t Clock) bool {
	if !s.HasBreak() {
		return false
	}
	return *s.BreakStart <= t && t < *s.BreakEnd
}
