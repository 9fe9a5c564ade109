package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// In-memory хранилища для тестов сервисов. Повторяют семантику SQL из internal/repository

var errStorage = errors.New("storage is down")

type fakeDoctors struct {
	doctors map[int64]*model.Doctor
}

func newFakeDoctors(ids ...int64) *fakeDoctors {
	f := &fakeDoctors{doctors: make(map[int64]*model.Doctor)}
	for _, id := range ids {
		f.doctors[id] = &model.Doctor{ID: id, FullName: fmt.Sprintf("Doctor %d", id), IsActive: true}
	}
	return f
}

func (f *fakeDoctors) GetByID(_ context.Context, id int64) (*model.Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

type fakeSchedules struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*model.WeeklySchedule
	err    error
}

func newFakeSchedules() *fakeSchedules {
	return &fakeSchedules{items: make(map[int64]*model.WeeklySchedule)}
}

func (f *fakeSchedules) Upsert(_ context.Context, s *model.WeeklySchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	for _, existing := range f.items {
		if existing.DoctorID == s.DoctorID && existing.DayOfWeek == s.DayOfWeek {
			s.ID = existing.ID
			s.CreatedAt = existing.CreatedAt
			s.IsActive = true
			cp := *s
			f.items[s.ID] = &cp
			return nil
		}
	}

	f.nextID++
	s.ID = f.nextID
	s.IsActive = true
	cp := *s
	f.items[s.ID] = &cp
	return nil
}

func (f *fakeSchedules) GetByID(_ context.Context, id int64) (*model.WeeklySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSchedules) GetByDoctorAndWeekday(_ context.Context, doctorID int64, day int) (*model.WeeklySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.items {
		if s.DoctorID == doctorID && s.DayOfWeek == day {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSchedules) ListByDoctor(_ context.Context, doctorID int64) ([]*model.WeeklySchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.WeeklySchedule
	for _, s := range f.items {
		if s.DoctorID == doctorID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

func (f *fakeSchedules) SetActive(_ context.Context, id int64, active bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.items[id]
	if !ok {
		return false, nil
	}
	s.IsActive = active
	return true, nil
}

type fakeCalendar struct {
	mu    sync.Mutex
	items map[string]*model.CalendarOverride
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{items: make(map[string]*model.CalendarOverride)}
}

func calendarKey(doctorID int64, date time.Time) string {
	return fmt.Sprintf("%d/%s", doctorID, date.Format(model.DateLayout))
}

func (f *fakeCalendar) Get(_ context.Context, doctorID int64, date time.Time) (*model.CalendarOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.items[calendarKey(doctorID, date)]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeCalendar) Upsert(_ context.Context, o *model.CalendarOverride) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *o
	f.items[calendarKey(o.DoctorID, o.Date)] = &cp
	return nil
}

func (f *fakeCalendar) ListByDoctor(_ context.Context, doctorID int64, from, to time.Time) ([]*model.CalendarOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.CalendarOverride
	for _, o := range f.items {
		if o.DoctorID == doctorID && !o.Date.Before(from) && !o.Date.After(to) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// fakeBookings держит уникальность (doctor, date, time) среди не отменённых записей
type fakeBookings struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*model.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{items: make(map[int64]*model.Booking)}
}

func (f *fakeBookings) taken(doctorID int64, date time.Time, at model.Clock, except int64) bool {
	for _, b := range f.items {
		if b.ID != except && b.DoctorID == doctorID && b.Date.Equal(date) && b.Time == at &&
			b.Status != model.BookingStatusCancelled {
			return true
		}
	}
	return false
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.taken(b.DoctorID, b.Date, b.Time, 0) {
		return repository.ErrSlotTaken
	}

	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.items[b.ID] = &cp
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) BookedTimes(_ context.Context, doctorID int64, date time.Time) ([]model.Clock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Clock
	for _, b := range f.items {
		if b.DoctorID == doctorID && b.Date.Equal(date) && b.Status != model.BookingStatusCancelled {
			out = append(out, b.Time)
		}
	}
	return out, nil
}

func (f *fakeBookings) ListByDoctor(_ context.Context, doctorID int64, from, to time.Time) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Booking
	for _, b := range f.items {
		if b.DoctorID == doctorID && !b.Date.Before(from) && !b.Date.After(to) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBookings) CountScheduled(_ context.Context, doctorID int64, date time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, b := range f.items {
		if b.DoctorID == doctorID && b.Date.Equal(date) && b.Status == model.BookingStatusScheduled {
			count++
		}
	}
	return count, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id int64, from, to model.BookingStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.items[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (f *fakeBookings) Reschedule(_ context.Context, id int64, date time.Time, at model.Clock) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.items[id]
	if !ok || b.Status != model.BookingStatusScheduled {
		return false, nil
	}
	if f.taken(b.DoctorID, date, at, id) {
		return false, repository.ErrSlotTaken
	}
	b.Date, b.Time = date, at
	return true, nil
}

type fakeVerifications struct {
	mu    sync.Mutex
	items map[string]*model.VerificationChallenge
}

func newFakeVerifications() *fakeVerifications {
	return &fakeVerifications{items: make(map[string]*model.VerificationChallenge)}
}

func (f *fakeVerifications) Get(_ context.Context, phone string) (*model.VerificationChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.items[phone]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeVerifications) ReserveSend(_ context.Context, phone string, now time.Time, limit int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	today := model.TruncateDate(now)
	c, ok := f.items[phone]
	if !ok {
		c = &model.VerificationChallenge{PhoneNumber: phone, ExpiresAt: now}
		f.items[phone] = c
	}

	sent := c.SendsOn(today)
	if limit > 0 && sent >= limit {
		return 0, false, nil
	}
	c.SentOn, c.SentCount = today, sent+1
	return c.SentCount, true, nil
}

func (f *fakeVerifications) Save(_ context.Context, c *model.VerificationChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *c
	if prev, ok := f.items[c.PhoneNumber]; ok {
		cp.SentOn, cp.SentCount = prev.SentOn, prev.SentCount
	}
	f.items[c.PhoneNumber] = &cp
	return nil
}

func (f *fakeVerifications) DecrementAttempts(_ context.Context, phone string, now time.Time) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.items[phone]
	if !ok || c.CodeHash == "" || c.Verified || c.AttemptsRemaining <= 0 || !now.Before(c.ExpiresAt) {
		return 0, false, nil
	}
	c.AttemptsRemaining--
	if c.AttemptsRemaining == 0 {
		c.CodeHash = ""
	}
	return c.AttemptsRemaining, true, nil
}

func (f *fakeVerifications) MarkVerified(_ context.Context, phone, codeHash string, until time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.items[phone]
	if !ok || c.CodeHash != codeHash || c.Verified || c.AttemptsRemaining <= 0 {
		return false, nil
	}
	c.Verified = true
	c.CodeHash = ""
	c.ExpiresAt = until
	return true, nil
}

func (f *fakeVerifications) Consume(_ context.Context, phone string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.items[phone]
	if !ok || !c.Verified || !now.Before(c.ExpiresAt) {
		return false, nil
	}
	c.Verified = false
	c.ExpiresAt = now
	return true, nil
}

func (f *fakeVerifications) Invalidate(_ context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.items[phone]; ok && !c.Verified {
		c.CodeHash = ""
		c.AttemptsRemaining = 0
	}
	return nil
}

func (f *fakeVerifications) DeleteStale(_ context.Context, now, today time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for phone, c := range f.items {
		if c.ExpiresAt.Before(now) && c.SentOn.Before(today) {
			delete(f.items, phone)
			n++
		}
	}
	return n, nil
}

type rateHit struct {
	client, endpoint string
	at               time.Time
}

type fakeRateLimits struct {
	mu   sync.Mutex
	hits []rateHit
}

func (f *fakeRateLimits) RecordIfBelow(_ context.Context, client, endpoint string, since, at time.Time, limit int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, h := range f.hits {
		if h.client == client && h.endpoint == endpoint && h.at.After(since) {
			n++
		}
	}
	if n >= limit {
		return false, nil
	}

	f.hits = append(f.hits, rateHit{client: client, endpoint: endpoint, at: at})
	return true, nil
}

func (f *fakeRateLimits) PurgeBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.hits[:0]
	var n int64
	for _, h := range f.hits {
		if h.at.Before(before) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	f.hits = kept
	return n, nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []*model.ActivityEntry
}

func (f *fakeActivity) Create(_ context.Context, e *model.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.ID = int64(len(f.entries) + 1)
	cp := *e
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeActivity) ListByDoctor(_ context.Context, doctorID int64, limit int) ([]*model.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.ActivityEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].DoctorID == doctorID {
			cp := *f.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeActivity) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// passTx выполняет fn без транзакции: гонку записей решает уникальность в fakeBookings
type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	codes map[string]string
}

func (f *fakeSender) SendCode(_ context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[phone] = code
	return nil
}

func (f *fakeSender) last(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[phone]
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string, string) error { return nil }

// testEnv собранные сервисы поверх in-memory хранилищ
type testEnv struct {
	now          time.Time
	doctors      *fakeDoctors
	schedules    *fakeSchedules
	calendar     *fakeCalendar
	bookings     *fakeBookings
	verification *fakeVerifications
	activityRepo *fakeActivity
	sender       *fakeSender

	engine   *SlotEngine
	gate     *VerificationService
	booking  *BookingService
	schedule *ScheduleService
	activity *ActivityService
}

var testNow = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func testVerificationConfig() VerificationConfig {
	return VerificationConfig{
		CodeTTL:         10 * time.Minute,
		VerifiedTTL:     30 * time.Minute,
		MaxAttempts:     5,
		DailyLimit:      3,
		BcryptCost:      bcrypt.MinCost,
		FallbackEnabled: true,
	}
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()

	env := &testEnv{
		now:          testNow,
		doctors:      newFakeDoctors(1, 2),
		schedules:    newFakeSchedules(),
		calendar:     newFakeCalendar(),
		bookings:     newFakeBookings(),
		verification: newFakeVerifications(),
		activityRepo: &fakeActivity{},
		sender:       &fakeSender{},
	}
	clock := func() time.Time { return env.now }

	env.activity = NewActivityService(env.activityRepo, logger)
	env.engine = NewSlotEngine(env.schedules, env.calendar, env.bookings, logger)

	env.gate = NewVerificationService(env.verification, allowAll{}, env.sender, testVerificationConfig(), logger)
	env.gate.now = clock

	env.booking = NewBookingService(passTx{}, env.doctors, env.bookings, env.engine, env.gate, env.activity, time.UTC, logger)
	env.booking.now = clock

	env.schedule = NewScheduleService(passTx{}, env.doctors, env.schedules, env.calendar, env.bookings, env.activity, logger)

	return env
}

func clockPtr(c model.Clock) *model.Clock {
	return &c
}

func mustDate(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// mondaySchedule расписание на понедельник 08:00-12:00, перерыв 10:00-10:15, слот 15 минут
func (env *testEnv) mondaySchedule(doctorID int64) *model.WeeklySchedule {
	s := &model.WeeklySchedule{
		DoctorID:            doctorID,
		DayOfWeek:           0,
		StartTime:           model.NewClock(8, 0),
		EndTime:             model.NewClock(12, 0),
		BreakStart:          clockPtr(model.NewClock(10, 0)),
		BreakEnd:            clockPtr(model.NewClock(10, 15)),
		SlotDurationMinutes: 15,
	}
	if err := env.schedules.Upsert(context.Background(), s); err != nil {
		panic(err)
	}
	return s
}

// verifyPhone проводит телефон через отправку и проверку кода
func (env *testEnv) verifyPhone(phone string) {
	ctx := context.Background()
	if _, err := env.gate.Send(ctx, phone, "test"); err != nil {
		panic(err)
	}
	normalized, _ := NormalizePhone(phone)
	if err := env.gate.Verify(ctx, phone, env.sender.last(normalized), "test"); err != nil {
		panic(err)
	}
}
