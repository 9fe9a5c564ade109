package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository"
	"go.uber.org/zap"
)

// maxListRange самый длинный диапазон дат для выборки записей
const maxListRange = 92 * 24 * time.Hour

// VerificationGate то, что координатору нужно от подтверждения телефона
type VerificationGate interface {
	IsVerified(ctx context.Context, phone string) (bool, error)
	ConsumeVerification(ctx context.Context, phone string) (bool, error)
}

// CreateBookingRequest данные пациента для записи
type CreateBookingRequest struct {
	DoctorID     int64
	Date         time.Time
	Time         model.Clock
	PatientName  string
	PatientPhone string
	PatientSNILS string
	Description  string
}

// BookingService создаёт записи и меняет их статус
type BookingService struct {
	tx          Transactor
	doctorRepo  DoctorStore
	bookingRepo BookingStore
	engine      *SlotEngine
	gate        VerificationGate
	activity    *ActivityService
	location    *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

func NewBookingService(
	tx Transactor,
	doctorRepo DoctorStore,
	bookingRepo BookingStore,
	engine *SlotEngine,
	gate VerificationGate,
	activity *ActivityService,
	location *time.Location,
	logger *zap.Logger,
) *BookingService {
	if location == nil {
		location = time.UTC
	}
	return &BookingService{
		tx:          tx,
		doctorRepo:  doctorRepo,
		bookingRepo: bookingRepo,
		engine:      engine,
		gate:        gate,
		activity:    activity,
		location:    location,
		now:         time.Now,
		logger:      logger,
	}
}

// CreateBooking записывает пациента на время. Проверка слота и вставка идут в
// одной транзакции, гонку двух записей решает уникальный индекс.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	phone, err := validateBookingRequest(&req)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Time:         req.Time,
		PatientName:  req.PatientName,
		PatientPhone: phone,
		PatientSNILS: req.PatientSNILS,
		Description:  req.Description,
		Status:       model.BookingStatusScheduled,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		verified, err := s.gate.IsVerified(ctx, phone)
		if err != nil {
			return fmt.Errorf("check verification: %w", err)
		}
		if !verified {
			return ErrPreconditionFailed
		}

		if err := s.ensureDoctor(ctx, req.DoctorID); err != nil {
			return err
		}

		if err := s.ensureBookable(ctx, req.DoctorID, req.Date, req.Time); err != nil {
			return err
		}

		if err := s.bookingRepo.Create(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("create booking: %w", err)
		}

		consumed, err := s.gate.ConsumeVerification(ctx, phone)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrPreconditionFailed
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("doctor_id", booking.DoctorID),
		zap.String("date", booking.Date.Format(model.DateLayout)),
		zap.String("time", booking.Time.String()))

	s.activity.Record(ctx, booking.DoctorID, Actor{Role: RolePatient, Subject: "patient:" + phone},
		model.ActivityBookingCreated, bookingDetails(booking))

	return booking, nil
}

// GetBooking запись по ID для сотрудников клиники
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, id int64) (*model.Booking, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanViewDoctor(booking.DoctorID) {
		return nil, ErrForbidden
	}

	return booking, nil
}

// ListBookings записи врача за период [from, to]
func (s *BookingService) ListBookings(ctx context.Context, actor Actor, doctorID int64, from, to time.Time) ([]*model.Booking, error) {
	if !actor.CanViewDoctor(doctorID) {
		return nil, ErrForbidden
	}

	from, to = model.TruncateDate(from), model.TruncateDate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	if to.Sub(from) > maxListRange {
		return nil, fmt.Errorf("%w: date range is too long", ErrInvalidInput)
	}

	bookings, err := s.bookingRepo.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return bookings, nil
}

// CompleteBooking отмечает приём состоявшимся. Только лечащий врач
func (s *BookingService) CompleteBooking(ctx context.Context, actor Actor, id int64) (*model.Booking, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role != RoleDoctor || actor.DoctorID != booking.DoctorID {
		return nil, ErrForbidden
	}

	return s.transition(ctx, actor, booking, model.BookingStatusCompleted, model.ActivityBookingCompleted)
}

// CancelBooking отменяет запись. Регистратура, администратор или сам пациент
func (s *BookingService) CancelBooking(ctx context.Context, actor Actor, id int64) (*model.Booking, error) {
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canCancel(actor, booking) {
		return nil, ErrForbidden
	}

	return s.transition(ctx, actor, booking, model.BookingStatusCancelled, model.ActivityBookingCancelled)
}

// RescheduleBooking переносит активную запись на другое свободное время
func (s *BookingService) RescheduleBooking(ctx context.Context, actor Actor, id int64, date time.Time, at model.Clock) (*model.Booking, error) {
	if date.IsZero() || !at.Valid() {
		return nil, fmt.Errorf("%w: date and time are required", ErrInvalidInput)
	}
	date = model.TruncateDate(date)

	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsStaff() || !actor.CanViewDoctor(booking.DoctorID) {
		return nil, ErrForbidden
	}
	if booking.Status != model.BookingStatusScheduled {
		return nil, ErrInvalidTransition
	}
	if booking.Date.Equal(date) && booking.Time == at {
		return booking, nil
	}

	prevDate, prevTime := booking.Date, booking.Time

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureBookable(ctx, booking.DoctorID, date, at); err != nil {
			return err
		}

		ok, err := s.bookingRepo.Reschedule(ctx, id, date, at)
		if err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("reschedule booking: %w", err)
		}
		if !ok {
			return ErrInvalidTransition
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Date, booking.Time = date, at

	s.logger.Info("Booking rescheduled",
		zap.Int64("booking_id", id),
		zap.String("from", prevDate.Format(model.DateLayout)+" "+prevTime.String()),
		zap.String("to", date.Format(model.DateLayout)+" "+at.String()))

	s.activity.Record(ctx, booking.DoctorID, actor, model.ActivityBookingRescheduled,
		fmt.Sprintf("#%d %s %s -> %s %s", id,
			prevDate.Format(model.DateLayout), prevTime, date.Format(model.DateLayout), at))

	return s.getBooking(ctx, id)
}

// transition переводит запись из scheduled в терминальный статус.
// Повтор того же перехода ничего не меняет, обратный переход запрещён.
func (s *BookingService) transition(ctx context.Context, actor Actor, booking *model.Booking, to model.BookingStatus, action string) (*model.Booking, error) {
	switch booking.Status {
	case to:
		return booking, nil
	case model.BookingStatusScheduled:
	default:
		return nil, ErrInvalidTransition
	}

	ok, err := s.bookingRepo.UpdateStatus(ctx, booking.ID, model.BookingStatusScheduled, to)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	updated, err := s.getBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}

	if !ok {
		// Кто-то успел раньше: повтор того же перехода считаем успехом
		if updated.Status == to {
			return updated, nil
		}
		return nil, ErrInvalidTransition
	}

	s.logger.Info("Booking status changed",
		zap.Int64("booking_id", booking.ID),
		zap.String("status", string(to)),
		zap.String("actor", actor.Name()))

	s.activity.Record(ctx, booking.DoctorID, actor, action, bookingDetails(updated))

	return updated, nil
}

// ensureBookable время в будущем и свободно по свежему расчёту сетки
func (s *BookingService) ensureBookable(ctx context.Context, doctorID int64, date time.Time, at model.Clock) error {
	if !at.OnDate(date, s.location).After(s.now()) {
		return ErrSlotUnavailable
	}

	slots, err := s.engine.GetSlots(ctx, doctorID, date)
	if err != nil {
		return fmt.Errorf("get slots: %w", err)
	}

	slot, ok := FindSlot(slots, at)
	if !ok || !slot.Available() {
		return ErrSlotUnavailable
	}

	return nil
}

func (s *BookingService) ensureDoctor(ctx context.Context, doctorID int64) error {
	doctor, err := s.doctorRepo.GetByID(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("get doctor: %w", err)
	}
	if doctor == nil || !doctor.IsActive {
		return fmt.Errorf("%w: doctor %d", ErrNotFound, doctorID)
	}
	return nil
}

func (s *BookingService) getBooking(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("%w: booking %d", ErrNotFound, id)
	}
	return booking, nil
}

func canCancel(actor Actor, booking *model.Booking) bool {
	switch actor.Role {
	case RoleRegistrar, RoleAdmin:
		return true
	case RolePatient:
		phone, err := NormalizePhone(actor.Phone)
		return err == nil && phone == booking.PatientPhone
	}
	return false
}

func validateBookingRequest(req *CreateBookingRequest) (string, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientSNILS = strings.TrimSpace(req.PatientSNILS)
	req.Description = strings.TrimSpace(req.Description)

	if req.DoctorID <= 0 {
		return "", fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	if req.Date.IsZero() {
		return "", fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if !req.Time.Valid() {
		return "", fmt.Errorf("%w: time is out of range", ErrInvalidInput)
	}
	if req.PatientName == "" {
		return "", fmt.Errorf("%w: patient_name is required", ErrInvalidInput)
	}

	req.Date = model.TruncateDate(req.Date)
	return NormalizePhone(req.PatientPhone)
}

func bookingDetails(b *model.Booking) string {
	return fmt.Sprintf("#%d %s %s %s", b.ID, b.Date.Format(model.DateLayout), b.Time, b.PatientName)
}
