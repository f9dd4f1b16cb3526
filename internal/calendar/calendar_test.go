package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestIsBusinessDay(t *testing.T) {
	cal := New(day("2025-10-06"))

	tests := []struct {
		date string
		want bool
	}{
		{"2025-10-01", true},  // Wednesday
		{"2025-10-04", false}, // Saturday
		{"2025-10-05", false}, // Sunday
		{"2025-10-03", false}, // Foundation Day
		{"2025-10-09", false}, // Hangul Day
		{"2025-10-06", false}, // extra holiday
		{"2025-12-25", false},
		{"2026-01-01", false},
		{"2026-03-02", true},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsBusinessDay(day(tt.date)))
		})
	}
}

func TestShift(t *testing.T) {
	cal := New()

	// Friday 2025-10-03 is a holiday: forward lands on Monday, backward on Thursday.
	assert.Equal(t, day("2025-10-06"), cal.Shift(day("2025-10-03"), true))
	assert.Equal(t, day("2025-10-02"), cal.Shift(day("2025-10-03"), false))
	assert.Equal(t, day("2025-10-01"), cal.Shift(day("2025-10-01"), true))
}

func TestShiftIgnoresTimeOfDay(t *testing.T) {
	cal := New()
	in := time.Date(2025, 10, 1, 18, 30, 0, 0, time.FixedZone("KST", 9*3600))
	assert.Equal(t, day("2025-10-01"), cal.Shift(in, true))
}

func TestStepDate(t *testing.T) {
	cal := New()
	monday := day("2025-09-15")

	assert.Equal(t, day("2025-09-08"), cal.StepDate(monday, -7))
	assert.Equal(t, monday, cal.StepDate(monday, 0))
	assert.Equal(t, day("2025-09-17"), cal.StepDate(monday, 2))

	// +5 lands on Saturday and moves forward; -2 lands on Saturday and moves back.
	assert.Equal(t, day("2025-09-22"), cal.StepDate(monday, 5))
	assert.Equal(t, day("2025-09-12"), cal.StepDate(monday, -2))

	// A holiday trigger with zero offset resolves to the next business day.
	assert.Equal(t, day("2025-10-06"), cal.StepDate(day("2025-10-03"), 0))
}

// businessDaysBetween counts business days in [from, to).
func businessDaysBetween(cal *Calendar, from, to time.Time) int {
	n := 0
	for d := Date(from); d.Before(Date(to)); d = d.AddDate(0, 0, 1) {
		if cal.IsBusinessDay(d) {
			n++
		}
	}
	return n
}

func TestBusinessDaysBefore(t *testing.T) {
	cal := New()

	// Wednesday 2025-10-15, 7 business days back skips the weekend and Hangul Day.
	got := cal.BusinessDaysBefore(day("2025-10-15"), 7)
	assert.Equal(t, day("2025-10-02"), got)
	assert.Equal(t, 7, businessDaysBetween(cal, got, day("2025-10-15")))

	assert.Equal(t, day("2025-10-02"), cal.BusinessDaysBefore(day("2025-10-03"), 0))
}

func TestCalendarDaysBefore(t *testing.T) {
	cal := New()
	// 14 calendar days before Monday 2025-09-29 is Monday 2025-09-15.
	assert.Equal(t, day("2025-09-15"), cal.CalendarDaysBefore(day("2025-09-29"), 14))
	// 2 calendar days before Monday is Saturday; moves back to Friday.
	assert.Equal(t, day("2025-09-26"), cal.CalendarDaysBefore(day("2025-09-29"), 2))
}

func TestBusinessDaysBeforeProperties(t *testing.T) {
	cal := New(day("2025-10-06"), day("2025-10-07"), day("2025-10-08"))
	start := day("2025-09-01")

	for i := 0; i < 120; i++ {
		target := start.AddDate(0, 0, i)
		for n := 1; n <= 25; n++ {
			got := cal.BusinessDaysBefore(target, n)
			require.True(t, cal.IsBusinessDay(got), "target=%s n=%d got=%s", target, n, got)
			require.Equal(t, n, businessDaysBetween(cal, got, target), "target=%s n=%d", target, n)
		}
		require.True(t, cal.IsBusinessDay(cal.BusinessDaysBefore(target, 0)))
	}
}

func TestStepDateProperties(t *testing.T) {
	cal := New(day("2025-10-06"), day("2025-10-07"), day("2025-10-08"))
	start := day("2025-09-01")

	for i := 0; i < 120; i++ {
		trigger := start.AddDate(0, 0, i)
		for k := -30; k <= 30; k++ {
			got := cal.StepDate(trigger, k)
			raw := trigger.AddDate(0, 0, k)
			require.True(t, cal.IsBusinessDay(got))
			if k >= 0 {
				require.False(t, got.Before(raw), "trigger=%s k=%d", trigger, k)
			} else {
				require.False(t, got.After(raw), "trigger=%s k=%d", trigger, k)
			}
		}
	}
}

func TestParse(t *testing.T) {
	cal, err := Parse([]string{"2025-10-06"})
	require.NoError(t, err)
	assert.False(t, cal.IsBusinessDay(day("2025-10-06")))

	_, err = Parse([]string{"06/10/2025"})
	assert.Error(t, err)
}
