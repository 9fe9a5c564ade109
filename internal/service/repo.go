package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
)

// Интерфейсы хранилищ. Реализации на pgx лежат в internal/repository

type DoctorStore interface {
	GetByID(ctx context.Context, id int64) (*model.Doctor, error)
}

type ScheduleStore interface {
	Upsert(ctx context.Context, schedule *model.WeeklySchedule) error
	GetByID(ctx context.Context, id int64) (*model.WeeklySchedule, error)
	GetByDoctorAndWeekday(ctx context.Context, doctorID int64, dayOfWeek int) (*model.WeeklySchedule, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]*model.WeeklySchedule, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
}

type CalendarStore interface {
	Get(ctx context.Context, doctorID int64, date time.Time) (*model.CalendarOverride, error)
	Upsert(ctx context.Context, override *model.CalendarOverride) error
	ListByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.CalendarOverride, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	BookedTimes(ctx context.Context, doctorID int64, date time.Time) ([]model.Clock, error)
	ListByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.Booking, error)
	CountScheduled(ctx context.Context, doctorID int64, date time.Time) (int, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.BookingStatus) (bool, error)
	Reschedule(ctx context.Context, id int64, date time.Time, at model.Clock) (bool, error)
}

type VerificationStore interface {
	Get(ctx context.Context, phone string) (*model.VerificationChallenge, error)
	ReserveSend(ctx context.Context, phone string, now time.Time, limit int) (int, bool, error)
	Save(ctx context.Context, challenge *model.VerificationChallenge) error
	DecrementAttempts(ctx context.Context, phone string, now time.Time) (int, bool, error)
	MarkVerified(ctx context.Context, phone, codeHash string, until time.Time) (bool, error)
	Consume(ctx context.Context, phone string, now time.Time) (bool, error)
	Invalidate(ctx context.Context, phone string) error
	DeleteStale(ctx context.Context, now, today time.Time) (int64, error)
}

type RateLimitStore interface {
	RecordIfBelow(ctx context.Context, clientKey, endpoint string, since, at time.Time, limit int) (bool, error)
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

type ActivityStore interface {
	Create(ctx context.Context, entry *model.ActivityEntry) error
	ListByDoctor(ctx context.Context, doctorID int64, limit int) ([]*model.ActivityEntry, error)
}

type ContactStore interface {
	Upsert(ctx context.Context, contact *model.MessengerContact) error
	GetByPhone(ctx context.Context, phone string) (*model.MessengerContact, error)
}

// Transactor выполняет fn в одной транзакции хранилища
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
