package model

import "time"

type Doctor struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty string    `json:"specialty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityEntry запись журнала действий по врачу
type ActivityEntry struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	Actor     string    `json:"user_login"`
	Action    string    `json:"action_type"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Действия журнала
const (
	ActivityBookingCreated     = "booking_created"
	ActivityBookingCompleted   = "booking_completed"
	ActivityBookingCancelled   = "booking_cancelled"
	ActivityBookingRescheduled = "booking_rescheduled"
	ActivityScheduleUpdated    = "schedule_updated"
	ActivityCalendarUpdated    = "calendar_updated"
)

// MessengerContact связка телефона с чатом мессенджера
type MessengerContact struct {
	PhoneNumber string    `json:"phone_number"`
	ChatID      int64     `json:"chat_id"`
	Username    string    `json:"username"`
	LinkedAt    time.Time `json:"linked_at"`
}
