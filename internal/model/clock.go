package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout формат даты во всех запросах и ответах
const DateLayout = "2006-01-02"

// MinutesPerDay количество минут в сутках
const MinutesPerDay = 24 * 60

// Clock время суток в минутах от полуночи (настенное время клиники, без часовых поясов)
type Clock int

// NewClock собирает время из часов и минут
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock разбирает строку вида "HH:MM" или "HH:MM:SS"
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	// Секунды допускаем только нулевые: сетка слотов минутная
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec != 0 {
			return 0, fmt.Errorf("invalid seconds in %q", s)
		}
	}

	return NewClock(hour, minute), nil
}

// Hour возвращает часы
func (c Clock) Hour() int {
	return int(c) / 60
}

// Minute возвращает минуты
func (c Clock) Minute() int {
	return int(c) % 60
}

// Add сдвигает время на заданное число минут
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// Valid проверяет что время лежит внутри суток
func (c Clock) Valid() bool {
	return c >= 0 && c < MinutesPerDay
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}

	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}

// OnDate возвращает момент времени на указанную дату в заданной локации
func (c Clock) OnDate(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc)
}

// ParseDate разбирает дату формата YYYY-MM-DD (полночь UTC)
func ParseDate(s string) (time.Time, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return date, nil
}

// TruncateDate отбрасывает время суток, сохраняя календарную дату
func TruncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekdayIndex возвращает номер дня недели, где понедельник = 0, воскресенье = 6
func WeekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}
