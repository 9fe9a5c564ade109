package model

import "time"

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled" // Запись активна
	BookingStatusCompleted BookingStatus = "completed" // Приём состоялся
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено
)

// IsTerminal completed и cancelled дальше не меняются
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type Booking struct {
	ID           int64         `json:"id"`
	DoctorID     int64         `json:"doctor_id"`
	Date         time.Time     `json:"appointment_date"`
	Time         Clock         `json:"appointment_time"`
	PatientName  string        `json:"patient_name"`
	PatientPhone string        `json:"patient_phone"`
	PatientSNILS string        `json:"patient_snils,omitempty"`
	Description  string        `json:"description,omitempty"`
	Status       BookingStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	CancelledAt  *time.Time    `json:"cancelled_at,omitempty"`
}
