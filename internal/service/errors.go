package service

import "errors"

// Ошибки бизнес-логики. Контроллеры сравнивают их через errors.Is
var (
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrRateLimited        = errors.New("too many requests")
	ErrPreconditionFailed = errors.New("phone is not verified")
	ErrSlotUnavailable    = errors.New("slot is not available")
	ErrConfiguration      = errors.New("invalid schedule configuration")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid booking status transition")
	ErrForbidden          = errors.New("forbidden")
	ErrDeliveryFailed     = errors.New("verification code delivery failed")
)
