package repository

import (
	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/jackc/pgx/v5/pgtype"
)

const microsecondsPerMinute = 60 * 1_000_000

// clockToPg переводит время суток в TIME
func clockToPg(c model.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * microsecondsPerMinute, Valid: true}
}

// optionalClockToPg nil превращается в NULL
func optionalClockToPg(c *model.Clock) pgtype.Time {
	if c == nil {
		return pgtype.Time{}
	}
	return clockToPg(*c)
}

// clockFromPg отбрасывает секунды: сетка слотов минутная
func clockFromPg(t pgtype.Time) model.Clock {
	return model.Clock(t.Microseconds / microsecondsPerMinute)
}

func optionalClockFromPg(t pgtype.Time) *model.Clock {
	if !t.Valid {
		return nil
	}
	c := clockFromPg(t)
	return &c
}
