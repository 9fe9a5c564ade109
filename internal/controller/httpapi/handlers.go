package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/service"
)

// SlotFinder расчёт слотов врача на дату
type SlotFinder interface {
	GetSlots(ctx context.Context, doctorID int64, date time.Time) ([]model.Slot, error)
}

// Verifier подтверждение телефона
type Verifier interface {
	Send(ctx context.Context, phone, clientKey string) (*service.SendResult, error)
	Verify(ctx context.Context, phone, code, clientKey string) error
	Cancel(ctx context.Context, phone string) error
}

// Bookings операции с записями на приём
type Bookings interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, actor service.Actor, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context, actor service.Actor, doctorID int64, from, to time.Time) ([]*model.Booking, error)
	CompleteBooking(ctx context.Context, actor service.Actor, id int64) (*model.Booking, error)
	CancelBooking(ctx context.Context, actor service.Actor, id int64) (*model.Booking, error)
	RescheduleBooking(ctx context.Context, actor service.Actor, id int64, date time.Time, at model.Clock) (*model.Booking, error)
}

// Schedules недельные расписания и календарь врача
type Schedules interface {
	UpsertWeeklySchedule(ctx context.Context, actor service.Actor, in service.ScheduleInput) (*model.WeeklySchedule, error)
	ListWeeklySchedules(ctx context.Context, actor service.Actor, doctorID int64) ([]*model.WeeklySchedule, error)
	SetWeeklyScheduleActive(ctx context.Context, actor service.Actor, id int64, active bool) (*model.WeeklySchedule, error)
	CopyWeeklySchedule(ctx context.Context, actor service.Actor, sourceID int64, weekdays []int) ([]*model.WeeklySchedule, error)
	ToggleCalendarOverride(ctx context.Context, actor service.Actor, doctorID int64, date time.Time, isWorking bool, note string) (*service.CalendarResult, error)
	ListCalendarOverrides(ctx context.Context, actor service.Actor, doctorID int64, year int) ([]*model.CalendarOverride, error)
}

// ActivityLog журнал действий по врачу
type ActivityLog interface {
	List(ctx context.Context, actor service.Actor, doctorID int64, limit int) ([]*model.ActivityEntry, error)
}

// Pinger проверка доступности базы
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler HTTP API портала записи
type Handler struct {
	slots     SlotFinder
	verifier  Verifier
	bookings  Bookings
	schedules Schedules
	activity  ActivityLog
	db        Pinger
	logger    *zap.Logger
}

// NewHandler создаёт обработчики API
func NewHandler(
	slots SlotFinder,
	verifier Verifier,
	bookings Bookings,
	schedules Schedules,
	activity ActivityLog,
	db Pinger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		slots:     slots,
		verifier:  verifier,
		bookings:  bookings,
		schedules: schedules,
		activity:  activity,
		db:        db,
		logger:    logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api/v1")

	staff := RequireRole(service.RoleDoctor, service.RoleRegistrar)
	doctor := RequireRole(service.RoleDoctor)

	// Публичная часть
	api.GET("/doctors/:id/slots", h.GetSlots)
	api.POST("/verification/send", h.SendCode)
	api.POST("/verification/verify", h.VerifyCode)
	api.POST("/verification/cancel", h.CancelVerification)
	api.POST("/bookings", h.CreateBooking)

	// Записи
	api.GET("/bookings", h.ListBookings, staff)
	api.GET("/bookings/:id", h.GetBooking, staff)
	api.POST("/bookings/:id/cancel", h.CancelBooking, RequireRole(service.RolePatient, service.RoleRegistrar))
	api.POST("/bookings/:id/complete", h.CompleteBooking, doctor)
	api.POST("/bookings/:id/reschedule", h.RescheduleBooking, staff)

	// Расписание и календарь
	api.GET("/doctors/:id/schedules", h.ListSchedules, staff)
	api.PUT("/doctors/:id/schedules", h.UpsertSchedule, doctor)
	api.PATCH("/schedules/:id", h.SetScheduleActive, doctor)
	api.POST("/schedules/:id/copy", h.CopySchedule, doctor)
	api.GET("/doctors/:id/calendar", h.ListCalendar, doctor)
	api.PUT("/doctors/:id/calendar/:date", h.ToggleCalendar, doctor)
	api.GET("/doctors/:id/activity", h.ListActivity, doctor)
}

// Health проверка живости
func (h *Handler) Health(c echo.Context) error {
	if err := h.db.Ping(c.Request().Context()); err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type slotsResponse struct {
	DoctorID int64        `json:"doctor_id"`
	Date     string       `json:"date"`
	Slots    []model.Slot `json:"slots"`
}

// GetSlots GET /doctors/:id/slots?date=YYYY-MM-DD
func (h *Handler) GetSlots(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	date, err := queryDate(c, "date")
	if err != nil {
		return err
	}

	slots, err := h.slots.GetSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, slotsResponse{
		DoctorID: doctorID,
		Date:     date.Format(model.DateLayout),
		Slots:    slots,
	})
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// SendCode POST /verification/send
func (h *Handler) SendCode(c echo.Context) error {
	var req phoneRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	result, err := h.verifier.Send(c.Request().Context(), req.Phone, c.RealIP())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// VerifyCode POST /verification/verify
func (h *Handler) VerifyCode(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	if err := h.verifier.Verify(c.Request().Context(), req.Phone, req.Code, c.RealIP()); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"verified": true})
}

// CancelVerification POST /verification/cancel
func (h *Handler) CancelVerification(c echo.Context) error {
	var req phoneRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	if err := h.verifier.Cancel(c.Request().Context(), req.Phone); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createBookingRequest struct {
	DoctorID     int64        `json:"doctor_id"`
	Date         string       `json:"appointment_date"`
	Time         *model.Clock `json:"appointment_time"`
	PatientName  string       `json:"patient_name"`
	PatientPhone string       `json:"patient_phone"`
	PatientSNILS string       `json:"patient_snils"`
	Description  string       `json:"description"`
}

// CreateBooking POST /bookings
func (h *Handler) CreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.Time == nil {
		return badRequest("appointment_time is required")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return badRequest("appointment_date must be YYYY-MM-DD")
	}

	booking, err := h.bookings.CreateBooking(c.Request().Context(), service.CreateBookingRequest{
		DoctorID:     req.DoctorID,
		Date:         date,
		Time:         *req.Time,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		PatientSNILS: req.PatientSNILS,
		Description:  req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, booking)
}

// GetBooking GET /bookings/:id
func (h *Handler) GetBooking(c echo.Context) error {
	return h.withBooking(c, h.bookings.GetBooking)
}

// ListBookings GET /bookings?doctor_id=&date= или &start_date=&end_date=
func (h *Handler) ListBookings(c echo.Context) error {
	doctorID, err := strconv.ParseInt(c.QueryParam("doctor_id"), 10, 64)
	if err != nil || doctorID <= 0 {
		return badRequest("doctor_id is required")
	}

	var from, to time.Time
	if c.QueryParam("date") != "" {
		from, err = queryDate(c, "date")
		if err != nil {
			return err
		}
		to = from
	} else {
		if from, err = queryDate(c, "start_date"); err != nil {
			return err
		}
		if to, err = queryDate(c, "end_date"); err != nil {
			return err
		}
	}

	bookings, err := h.bookings.ListBookings(c.Request().Context(), mustActor(c), doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bookings)
}

// CancelBooking POST /bookings/:id/cancel
func (h *Handler) CancelBooking(c echo.Context) error {
	return h.withBooking(c, h.bookings.CancelBooking)
}

// CompleteBooking POST /bookings/:id/complete
func (h *Handler) CompleteBooking(c echo.Context) error {
	return h.withBooking(c, h.bookings.CompleteBooking)
}

type rescheduleRequest struct {
	Date string       `json:"appointment_date"`
	Time *model.Clock `json:"appointment_time"`
}

// RescheduleBooking POST /bookings/:id/reschedule
func (h *Handler) RescheduleBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.Time == nil {
		return badRequest("appointment_time is required")
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return badRequest("appointment_date must be YYYY-MM-DD")
	}

	booking, err := h.bookings.RescheduleBooking(c.Request().Context(), mustActor(c), id, date, *req.Time)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, booking)
}

func (h *Handler) withBooking(
	c echo.Context,
	fn func(ctx context.Context, actor service.Actor, id int64) (*model.Booking, error),
) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	booking, err := fn(c.Request().Context(), mustActor(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, booking)
}

type scheduleRequest struct {
	DayOfWeek    *int         `json:"day_of_week"`
	StartTime    *model.Clock `json:"start_time"`
	EndTime      *model.Clock `json:"end_time"`
	BreakStart   *model.Clock `json:"break_start_time"`
	BreakEnd     *model.Clock `json:"break_end_time"`
	SlotDuration int          `json:"slot_duration"`
}

// UpsertSchedule PUT /doctors/:id/schedules
func (h *Handler) UpsertSchedule(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.DayOfWeek == nil || req.StartTime == nil || req.EndTime == nil {
		return badRequest("day_of_week, start_time and end_time are required")
	}

	schedule, err := h.schedules.UpsertWeeklySchedule(c.Request().Context(), mustActor(c), service.ScheduleInput{
		DoctorID:            doctorID,
		DayOfWeek:           *req.DayOfWeek,
		StartTime:           *req.StartTime,
		EndTime:             *req.EndTime,
		BreakStart:          req.BreakStart,
		BreakEnd:            req.BreakEnd,
		SlotDurationMinutes: req.SlotDuration,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, schedule)
}

// ListSchedules GET /doctors/:id/schedules
func (h *Handler) ListSchedules(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	schedules, err := h.schedules.ListWeeklySchedules(c.Request().Context(), mustActor(c), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, schedules)
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetScheduleActive PATCH /schedules/:id
func (h *Handler) SetScheduleActive(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req activeRequest
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return badRequest("is_active is required")
	}

	schedule, err := h.schedules.SetWeeklyScheduleActive(c.Request().Context(), mustActor(c), id, *req.IsActive)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, schedule)
}

type copyRequest struct {
	Weekdays []int `json:"weekdays"`
}

// CopySchedule POST /schedules/:id/copy
func (h *Handler) CopySchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req copyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	schedules, err := h.schedules.CopyWeeklySchedule(c.Request().Context(), mustActor(c), id, req.Weekdays)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, schedules)
}

type calendarRequest struct {
	IsWorking *bool  `json:"is_working"`
	Note      string `json:"note"`
}

// ToggleCalendar PUT /doctors/:id/calendar/:date
func (h *Handler) ToggleCalendar(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	date, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return badRequest("date must be YYYY-MM-DD")
	}

	var req calendarRequest
	if err := c.Bind(&req); err != nil || req.IsWorking == nil {
		return badRequest("is_working is required")
	}

	result, err := h.schedules.ToggleCalendarOverride(c.Request().Context(), mustActor(c), doctorID, date, *req.IsWorking, req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListCalendar GET /doctors/:id/calendar?year=
func (h *Handler) ListCalendar(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	year := time.Now().Year()
	if raw := c.QueryParam("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			return badRequest("year must be a number")
		}
	}

	overrides, err := h.schedules.ListCalendarOverrides(c.Request().Context(), mustActor(c), doctorID, year)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, overrides)
}

// ListActivity GET /doctors/:id/activity?limit=
func (h *Handler) ListActivity(c echo.Context) error {
	doctorID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return badRequest("limit must be a number")
		}
	}

	entries, err := h.activity.List(c.Request().Context(), mustActor(c), doctorID, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(name + " must be a positive number")
	}
	return id, nil
}

func queryDate(c echo.Context, name string) (time.Time, error) {
	date, err := model.ParseDate(c.QueryParam(name))
	if err != nil {
		return time.Time{}, badRequest(name + " must be YYYY-MM-DD")
	}
	return date, nil
}

// mustActor вызывается только за RequireRole, там участник уже проверен
func mustActor(c echo.Context) service.Actor {
	actor, _ := ActorFrom(c)
	return actor
}
