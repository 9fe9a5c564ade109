package model

import "time"

// CalendarOverride отметка врача на конкретную дату, перекрывает недельное расписание
type CalendarOverride struct {
	DoctorID  int64     `json:"doctor_id"`
	Date      time.Time `json:"calendar_date"`
	IsWorking bool      `json:"is_working"`
	Note      string    `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
