package model

import "time"

// VerificationChallenge код подтверждения телефона
type VerificationChallenge struct {
	PhoneNumber       string    `json:"phone_number"`
	CodeHash          string    `json:"-"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	Verified          bool      `json:"verified"`
	SentOn            time.Time `json:"sent_on"`    // день последней отправки
	SentCount         int       `json:"sent_count"` // отправок за этот день
}

// IsLive проверяет что по коду ещё можно пройти проверку
func (c *VerificationChallenge) IsLive(now time.Time) bool {
	return c.CodeHash != "" && !c.Verified && c.AttemptsRemaining > 0 && now.Before(c.ExpiresAt)
}

// IsExpired истёк ли срок действия
func (c *VerificationChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsVerifiedAt подтверждён ли телефон и не истекло ли подтверждение
func (c *VerificationChallenge) IsVerifiedAt(now time.Time) bool {
	return c.Verified && now.Before(c.ExpiresAt)
}

// SendsOn количество отправок за указанный день
func (c *VerificationChallenge) SendsOn(day time.Time) int {
	if c.SentOn.Equal(TruncateDate(day)) {
		return c.SentCount
	}
	return 0
}
