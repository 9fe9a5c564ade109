package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "08:00", want: NewClock(8, 0)},
		{in: "23:59", want: NewClock(23, 59)},
		{in: "10:15:00", want: NewClock(10, 15)},
		{in: " 09:30 ", want: NewClock(9, 30)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "10:15:30", wantErr: true},
		{in: "1015", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClock_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		At Clock `json:"at"`
	}{At: NewClock(9, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"09:05"}`, string(data))

	var decoded struct {
		At Clock `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"14:45"}`), &decoded))
	assert.Equal(t, NewClock(14, 45), decoded.At)

	assert.Error(t, json.Unmarshal([]byte(`{"at":845}`), &decoded))
}

func TestWeekdayIndex(t *testing.T) {
	monday, err := ParseDate("2025-01-06")
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		assert.Equal(t, i, WeekdayIndex(monday.AddDate(0, 0, i)))
	}
}

func TestClock_OnDate(t *testing.T) {
	date, err := ParseDate("2025-03-01")
	require.NoError(t, err)

	got := NewClock(10, 30).OnDate(date, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), got)
}

func TestWeeklySchedule_InBreak(t *testing.T) {
	start := NewClock(10, 0)
	end := NewClock(10, 15)

	s := &WeeklySchedule{BreakStart: &start, BreakEnd: &end}
	assert.True(t, s.InBreak(NewClock(10, 0)))
	assert.False(t, s.InBreak(NewClock(10, 15)))
	assert.False(t, s.InBreak(NewClock(9, 45)))

	// Одна граница перерыва не считается перерывом
	half := &WeeklySchedule{BreakStart: &start}
	assert.False(t, half.HasBreak())
	assert.False(t, half.InBreak(NewClock(10, 0)))
}

func TestVerificationChallenge_States(t *testing.T) {
	now := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	ch := &VerificationChallenge{
		CodeHash:          "hash",
		ExpiresAt:         now.Add(time.Minute),
		AttemptsRemaining: 1,
		SentOn:            TruncateDate(now),
		SentCount:         2,
	}
	assert.True(t, ch.IsLive(now))
	assert.False(t, ch.IsLive(now.Add(time.Minute)))
	assert.Equal(t, 2, ch.SendsOn(now))
	assert.Equal(t, 0, ch.SendsOn(now.AddDate(0, 0, 1)))

	ch.AttemptsRemaining = 0
	assert.False(t, ch.IsLive(now))

	ch.Verified = true
	assert.True(t, ch.IsVerifiedAt(now))
	assert.False(t, ch.IsVerifiedAt(now.Add(2*time.Minute)))
}
